// Package events is the in-process feed of enrichment outcomes.
// Subscribers that fall behind lose events rather than blocking the
// enrichment workers.
package events

import (
	"sync"
	"time"
)

// CallEnriched announces one successfully enriched call.
type CallEnriched struct {
	RawCallID     int64     `json:"raw_call_id"`
	EmergencyType string    `json:"emergency_type"`
	Subtype       string    `json:"subtype"`
	District      string    `json:"district"`
	Timestamp     time.Time `json:"timestamp"`
}

// Bus fans CallEnriched events out to subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs []chan CallEnriched
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Subscribe() <-chan CallEnriched {
	ch := make(chan CallEnriched, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(ev CallEnriched) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
