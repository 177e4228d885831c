package enrich

import (
	"context"
	"log"

	"crisislens/internal/store"
)

// Submitter re-queues raw call ids; satisfied by the dispatchers.
type Submitter interface {
	Submit(ctx context.Context, rawCallID int64) error
}

// BackfillSummary captures a backfill pass outcome.
type BackfillSummary struct {
	Candidates int `json:"candidates"`
	Submitted  int `json:"submitted"`
	Failed     int `json:"failed"`
}

// Backfill re-enqueues up to limit unprocessed raw calls, newest first.
// Duplicate submissions are harmless: the pipeline's idempotence gate
// absorbs them.
func Backfill(ctx context.Context, st *store.Store, sub Submitter, limit int) (BackfillSummary, error) {
	pending, err := st.ListUnprocessed(ctx, limit)
	if err != nil {
		return BackfillSummary{}, err
	}
	summary := BackfillSummary{Candidates: len(pending)}
	for _, raw := range pending {
		if err := sub.Submit(ctx, raw.ID); err != nil {
			log.Printf("backfill: submit call %d failed: %v", raw.ID, err)
			summary.Failed++
			continue
		}
		summary.Submitted++
	}
	log.Printf("backfill summary: candidates=%d submitted=%d failed=%d", summary.Candidates, summary.Submitted, summary.Failed)
	return summary, nil
}
