// Package dispatch hands raw call ids to enrichment workers. Delivery is
// at-least-once; the enrichment pipeline's processed-flag gate turns that
// into at-most-once business-level enrichment, so the dispatchers here
// never try to dedupe themselves.
package dispatch

import "context"

// Handler processes one raw call id to completion.
type Handler func(ctx context.Context, rawCallID int64) error

// Stats exposes current dispatcher metrics.
type Stats struct {
	Backend       string `json:"backend"`
	QueueLength   int    `json:"queue_length"`
	QueueCapacity int    `json:"queue_capacity"`
	WorkerCount   int    `json:"worker_count"`
	Processed     uint64 `json:"processed"`
	Failed        uint64 `json:"failed"`
}

// Dispatcher enqueues ids and runs a consumer worker pool.
type Dispatcher interface {
	// Submit enqueues one unit of work. An error means the id was NOT
	// queued; the raw row stays unprocessed and backfill will retry it.
	Submit(ctx context.Context, rawCallID int64) error
	Start(ctx context.Context)
	Stop(ctx context.Context)
	Stats() Stats
}
