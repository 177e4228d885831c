package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"crisislens/internal/config"
	"crisislens/internal/store"
)

type captureSubmitter struct {
	mu  sync.Mutex
	ids []int64
}

func (c *captureSubmitter) Submit(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
	return nil
}

func TestBackfillIngestsDroppedFiles(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "calls.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	callsDir := filepath.Join(dir, "calls")
	if err := os.MkdirAll(callsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	payload := `{"description": "kitchen fire spreading to the roof", "district": "Centrum", "caller_age": 41}`
	if err := os.WriteFile(filepath.Join(callsDir, "call1.json"), []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(callsDir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := &captureSubmitter{}
	w := New(config.Config{CallsDir: callsDir, EnableWatcher: true}, st, sub)
	if err := w.Backfill(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(sub.ids) != 1 {
		t.Fatalf("expected 1 submitted call, got %d", len(sub.ids))
	}
	raw, err := st.GetRawCall(context.Background(), sub.ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if raw == nil {
		t.Fatal("ingested call not stored")
	}
	if raw.Source != SourceTag {
		t.Fatalf("source = %q, want %q", raw.Source, SourceTag)
	}
	if raw.District == nil || *raw.District != "Centrum" {
		t.Fatalf("district not carried over: %+v", raw.District)
	}

	// the ingested file is renamed so a restart does not re-read it
	if _, err := os.Stat(filepath.Join(callsDir, "call1.json.done")); err != nil {
		t.Fatalf("expected renamed call file: %v", err)
	}
}

func TestIngestSkipsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "calls.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	callsDir := filepath.Join(dir, "calls")
	if err := os.MkdirAll(callsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(callsDir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := &captureSubmitter{}
	w := New(config.Config{CallsDir: callsDir, EnableWatcher: true}, st, sub)
	if err := w.Backfill(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sub.ids) != 0 {
		t.Fatalf("malformed file should not be submitted, got %v", sub.ids)
	}
}
