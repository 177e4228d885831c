package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis dispatches through a shared Redis list so ingestion and workers
// can live in separate processes, the transport the original deployment
// used. A worker that dies mid-job leaves its raw row unprocessed;
// backfill re-enqueues it, which keeps overall delivery at-least-once.
type Redis struct {
	client      *redis.Client
	queueKey    string
	handler     Handler
	workerCount int
	jobTimeout  time.Duration

	mu        sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	processed uint64
	failed    uint64
}

// NewRedis creates a Redis-backed dispatcher consuming queueKey.
func NewRedis(client *redis.Client, queueKey string, handler Handler, workerCount int, jobTimeout time.Duration) *Redis {
	return &Redis{
		client:      client,
		queueKey:    queueKey,
		handler:     handler,
		workerCount: workerCount,
		jobTimeout:  jobTimeout,
	}
}

// Submit pushes one job onto the queue.
func (d *Redis) Submit(ctx context.Context, rawCallID int64) error {
	payload, err := json.Marshal(job{ID: uuid.NewString(), RawCallID: rawCallID, SubmittedAt: time.Now().Unix()})
	if err != nil {
		return err
	}
	if err := d.client.LPush(ctx, d.queueKey, payload).Err(); err != nil {
		return errors.Join(errors.New("dispatch: redis submit failed"), err)
	}
	return nil
}

// Start launches the consumer pool.
func (d *Redis) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Stop cancels the consumers and waits for in-flight jobs until ctx is
// done.
func (d *Redis) Stop(ctx context.Context) {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
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

// Stats reports queue depth via LLEN.
func (d *Redis) Stats() Stats {
	length, err := d.client.LLen(context.Background(), d.queueKey).Result()
	if err != nil {
		length = -1
	}
	return Stats{
		Backend:     "redis",
		QueueLength: int(length),
		WorkerCount: d.workerCount,
		Processed:   atomic.LoadUint64(&d.processed),
		Failed:      atomic.LoadUint64(&d.failed),
	}
}

func (d *Redis) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := d.client.BRPop(ctx, time.Second, d.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			log.Printf("dispatch: redis pop failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		// BRPop returns [key, value].
		if len(res) != 2 {
			continue
		}
		var j job
		if err := json.Unmarshal([]byte(res[1]), &j); err != nil {
			log.Printf("dispatch: bad job payload, dropping: %v", err)
			continue
		}
		d.handle(ctx, j)
	}
}

func (d *Redis) handle(ctx context.Context, j job) {
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
	log.Printf("dispatch: backend=redis job=%s call=%d duration_ms=%d status=%s", j.ID, j.RawCallID, time.Since(start).Milliseconds(), status)
}
