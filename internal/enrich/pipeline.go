// Package enrich runs each raw call through classification and derivation
// and persists the enriched record: fetch, classify, enrich, persist,
// mark, in that order.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log"

	"crisislens/internal/config"
	"crisislens/internal/events"
	"crisislens/internal/metrics"
	"crisislens/internal/store"
)

// Classifier is the inference contract the pipeline depends on. Satisfied
// by classify.Service and classify.Fallback.
type Classifier interface {
	ClassifyMain(description string) string
	ClassifySubtype(description, mainType string) string
}

// Pipeline orchestrates per-call enrichment. All state is read-only after
// construction; concurrent workers share one Pipeline.
type Pipeline struct {
	store      *store.Store
	classifier Classifier
	cfg        config.ClassifierConfig
	metrics    *metrics.Metrics
	events     *events.Bus
}

func New(st *store.Store, classifier Classifier, cfg config.ClassifierConfig, m *metrics.Metrics) *Pipeline {
	if m == nil {
		m = metrics.New()
	}
	return &Pipeline{store: st, classifier: classifier, cfg: cfg, metrics: m, events: events.NewBus()}
}

// Events exposes the enrichment event feed for notifiers and dashboards.
func (p *Pipeline) Events() *events.Bus { return p.events }

// ProcessEmergencyCall is the single externally-invokable entry point.
// A missing raw call logs and returns nil (nothing to retry); duplicate
// delivery of an already-enriched id is absorbed silently; storage errors
// propagate so the dispatcher's retry policy can act. The raw call is
// never marked processed unless the enriched row committed in the same
// transaction.
func (p *Pipeline) ProcessEmergencyCall(ctx context.Context, rawCallID int64) error {
	raw, err := p.store.GetRawCall(ctx, rawCallID)
	if err != nil {
		p.metrics.RecordFailed()
		return fmt.Errorf("fetch raw call %d: %w", rawCallID, err)
	}
	if raw == nil {
		log.Printf("enrich: raw call %d not found, skipping", rawCallID)
		p.metrics.RecordSkipped()
		return nil
	}
	if raw.Processed {
		p.metrics.RecordRedelivered()
		return nil
	}

	emergencyType := p.classifier.ClassifyMain(raw.Description)
	emergencySubtype := p.classifier.ClassifySubtype(raw.Description, emergencyType)

	enriched := &store.EnrichedCall{
		RawCallID:        raw.ID,
		Timestamp:        raw.Timestamp,
		Description:      raw.Description,
		Latitude:         raw.Latitude,
		Longitude:        raw.Longitude,
		District:         raw.District,
		EmergencyType:    emergencyType,
		EmergencySubtype: emergencySubtype,
		CallerGender:     raw.CallerGender,
		CallerAge:        raw.CallerAge,
		AgeGroup:         AgeGroup(raw.CallerAge),
		ResponseTime:     ResponseTime(p.cfg, emergencyType),
		Source:           raw.Source,
		ProcessedAt:      config.Now(),
	}

	if err := p.store.InsertEnriched(ctx, enriched); err != nil {
		if errors.Is(err, store.ErrAlreadyEnriched) {
			// at-least-once delivery lost the race; the row exists, done.
			p.metrics.RecordRedelivered()
			return nil
		}
		p.metrics.RecordFailed()
		return fmt.Errorf("persist enriched call %d: %w", rawCallID, err)
	}

	p.metrics.RecordEnriched()
	p.events.Publish(events.CallEnriched{
		RawCallID:     raw.ID,
		EmergencyType: emergencyType,
		Subtype:       emergencySubtype,
		District:      deref(raw.District),
		Timestamp:     enriched.ProcessedAt,
	})
	log.Printf("enrich: call=%d type=%s subtype=%s age_group=%v source=%s", raw.ID, emergencyType, emergencySubtype, deref(enriched.AgeGroup), raw.Source)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return "unknown"
	}
	return *s
}
