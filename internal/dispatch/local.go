package dispatch

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrQueueFull is returned when the bounded queue cannot accept a job.
var ErrQueueFull = errors.New("dispatch queue full")

type job struct {
	ID          string `json:"job_id"`
	RawCallID   int64  `json:"raw_call_id"`
	SubmittedAt int64  `json:"submitted_at"`
}

// Local is the in-process dispatcher: a bounded job channel drained by a
// fixed worker pool. Single-process deployments and tests use this; the
// Redis dispatcher covers multi-process setups.
type Local struct {
	handler     Handler
	jobs        chan job
	workerCount int
	jobTimeout  time.Duration

	mu        sync.RWMutex
	started   bool
	wg        sync.WaitGroup
	processed uint64
	failed    uint64
}

// NewLocal creates a dispatcher with the provided capacity, worker count,
// and per-job timeout.
func NewLocal(handler Handler, capacity, workerCount int, jobTimeout time.Duration) *Local {
	return &Local{
		handler:     handler,
		jobs:        make(chan job, capacity),
		workerCount: workerCount,
		jobTimeout:  jobTimeout,
	}
}

// Start launches the worker pool.
func (d *Local) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Submit enqueues without blocking. A full queue is an error: the caller
// leaves the raw row unprocessed for backfill rather than silently
// dropping it.
func (d *Local) Submit(ctx context.Context, rawCallID int64) error {
	j := job{ID: uuid.NewString(), RawCallID: rawCallID, SubmittedAt: time.Now().Unix()}
	// the send must happen under the same lock Stop takes to close the
	// channel, or a Submit racing Stop panics
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.started {
		return errors.New("dispatcher not started")
	}
	select {
	case d.jobs <- j:
		return nil
	default:
		log.Printf("dispatch: queue full, rejecting call %d", rawCallID)
		return ErrQueueFull
	}
}

// Stop stops accepting jobs and waits for workers to drain until ctx is
// done.
func (d *Local) Stop(ctx context.Context) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Stats returns current queue metrics.
func (d *Local) Stats() Stats {
	return Stats{
		Backend:       "local",
		QueueLength:   len(d.jobs),
		QueueCapacity: cap(d.jobs),
		WorkerCount:   d.workerCount,
		Processed:     atomic.LoadUint64(&d.processed),
		Failed:        atomic.LoadUint64(&d.failed),
	}
}

func (d *Local) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-d.jobs:
			if !ok {
				return
			}
			d.handle(ctx, j)
		}
	}
}

func (d *Local) handle(ctx context.Context, j job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: job %s panic recovered: %v", j.ID, r)
			atomic.AddUint64(&d.failed, 1)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, d.jobTimeout)
	err := d.handler(jobCtx, j.RawCallID)
	cancel()
	atomic.AddUint64(&d.processed, 1)
	status := "success"
	if err != nil {
		atomic.AddUint64(&d.failed, 1)
		status = err.Error()
	}
	log.Printf("dispatch: backend=local job=%s call=%d duration_ms=%d status=%s", j.ID, j.RawCallID, time.Since(start).Milliseconds(), status)
}
