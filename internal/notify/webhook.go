// Package notify forwards enrichment events to an external webhook.
// Unconfigured (empty URL) it does nothing; delivery is best effort and
// never feeds back into the pipeline.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"

	"crisislens/internal/events"
)

// Notifier posts CallEnriched events to a webhook URL.
type Notifier struct {
	url    string
	client *resty.Client
}

func New(url string) *Notifier {
	return &Notifier{
		url:    url,
		client: resty.New().SetTimeout(10 * time.Second).SetRetryCount(1),
	}
}

// Run consumes the bus until the context is cancelled. Call it in its
// own goroutine.
func (n *Notifier) Run(ctx context.Context, bus *events.Bus) {
	if n.url == "" {
		return
	}
	ch := bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := n.send(ctx, ev); err != nil {
				log.Printf("notify: call %d: %v", ev.RawCallID, err)
			}
		}
	}
}

func (n *Notifier) send(ctx context.Context, ev events.CallEnriched) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(ev).
		Post(n.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("webhook status %d", resp.StatusCode())
	}
	return nil
}
