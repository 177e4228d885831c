package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crisislens/internal/events"
)

func TestNotifierPostsEnrichedEvents(t *testing.T) {
	received := make(chan events.CallEnriched, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev events.CallEnriched
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		received <- ev
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := events.NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := New(srv.URL)
	go n.Run(ctx, bus)

	// give Run a moment to subscribe before publishing
	time.Sleep(50 * time.Millisecond)
	bus.Publish(events.CallEnriched{RawCallID: 12, EmergencyType: "Fire", Subtype: "General"})

	select {
	case ev := <-received:
		if ev.RawCallID != 12 || ev.EmergencyType != "Fire" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never received the event")
	}
}

func TestNotifierDisabledWithoutURL(t *testing.T) {
	bus := events.NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		New("").Run(ctx, bus)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately when unconfigured")
	}
}
