package metrics

import "sync/atomic"

// Metrics captures shared operational stats for the dispatcher and the
// enrichment workers.
type Metrics struct {
	queueLength   int64
	queueCapacity int64
	workerCount   int64

	enriched    int64
	failed      int64
	skipped     int64
	redelivered int64
}

// Snapshot provides a consistent view of the current metrics.
type Snapshot struct {
	QueueLength   int   `json:"queue_length"`
	QueueCapacity int   `json:"queue_capacity"`
	WorkerCount   int   `json:"worker_count"`
	Enriched      int64 `json:"enriched"`
	Failed        int64 `json:"failed"`
	Skipped       int64 `json:"skipped"`
	Redelivered   int64 `json:"redelivered"`
}

// New creates a zeroed Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

// UpdateQueue records the current dispatcher queue stats.
func (m *Metrics) UpdateQueue(length, capacity, workers int) {
	atomic.StoreInt64(&m.queueLength, int64(length))
	atomic.StoreInt64(&m.queueCapacity, int64(capacity))
	atomic.StoreInt64(&m.workerCount, int64(workers))
}

// RecordEnriched counts a raw call successfully enriched and marked.
func (m *Metrics) RecordEnriched() { atomic.AddInt64(&m.enriched, 1) }

// RecordFailed counts a processing attempt that errored back to the
// dispatcher.
func (m *Metrics) RecordFailed() { atomic.AddInt64(&m.failed, 1) }

// RecordSkipped counts jobs aborted without error (missing raw row).
func (m *Metrics) RecordSkipped() { atomic.AddInt64(&m.skipped, 1) }

// RecordRedelivered counts duplicate deliveries absorbed by the
// idempotence gate.
func (m *Metrics) RecordRedelivered() { atomic.AddInt64(&m.redelivered, 1) }

// Snapshot returns a read-only view of metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		QueueLength:   int(atomic.LoadInt64(&m.queueLength)),
		QueueCapacity: int(atomic.LoadInt64(&m.queueCapacity)),
		WorkerCount:   int(atomic.LoadInt64(&m.workerCount)),
		Enriched:      atomic.LoadInt64(&m.enriched),
		Failed:        atomic.LoadInt64(&m.failed),
		Skipped:       atomic.LoadInt64(&m.skipped),
		Redelivered:   atomic.LoadInt64(&m.redelivered),
	}
}
