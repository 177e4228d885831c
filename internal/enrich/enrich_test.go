package enrich

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"crisislens/internal/classify"
	"crisislens/internal/config"
	"crisislens/internal/metrics"
	"crisislens/internal/store"
)

func TestAgeGroupBoundaries(t *testing.T) {
	cases := []struct {
		age  int
		want string
	}{
		{10, AgeGroupChild},
		{17, AgeGroupChild},
		{18, AgeGroupYoungAdult},
		{34, AgeGroupYoungAdult},
		{35, AgeGroupAdult},
		{40, AgeGroupAdult},
		{54, AgeGroupAdult},
		{55, AgeGroupSenior},
		{60, AgeGroupSenior},
	}
	for _, tc := range cases {
		got := AgeGroup(&tc.age)
		if got == nil || *got != tc.want {
			t.Fatalf("age %d: got %v want %s", tc.age, got, tc.want)
		}
	}
	if AgeGroup(nil) != nil {
		t.Fatal("nil age must yield nil group, never a fabricated value")
	}
}

func TestResponseTimeWithinConfiguredRange(t *testing.T) {
	cfg := config.DefaultClassifierConfig()
	for _, typ := range []string{"Fire", "EMS", "Traffic", "SomethingElse"} {
		rr := cfg.ResponseRangeFor(typ)
		for i := 0; i < 50; i++ {
			got := ResponseTime(cfg, typ)
			if got < rr.MinMinutes || got > rr.MaxMinutes {
				t.Fatalf("%s: response time %d outside [%d,%d]", typ, got, rr.MinMinutes, rr.MaxMinutes)
			}
		}
	}
}

func testPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	cfg := config.DefaultClassifierConfig()
	p := New(st, classify.NewFallback(cfg.Fallback), cfg, metrics.New())
	return p, st
}

func ingest(t *testing.T, st *store.Store, description string, age *int) int64 {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	id, err := st.InsertRawCall(context.Background(), &store.RawCall{
		Timestamp:   now,
		Description: description,
		CallerAge:   age,
		Source:      "webform",
		CreatedAt:   now,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestProcessEmergencyCallFireScenario(t *testing.T) {
	p, st := testPipeline(t)
	ctx := context.Background()
	age := 45
	id := ingest(t, st, "Structure fire with heavy smoke", &age)

	if err := p.ProcessEmergencyCall(ctx, id); err != nil {
		t.Fatalf("process: %v", err)
	}

	enriched, err := st.GetEnrichedByRawID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if enriched == nil {
		t.Fatal("expected enriched row")
	}
	if enriched.EmergencyType != "Fire" {
		t.Fatalf("expected Fire, got %s", enriched.EmergencyType)
	}
	if enriched.AgeGroup == nil || *enriched.AgeGroup != AgeGroupAdult {
		t.Fatalf("expected Adult age group, got %v", enriched.AgeGroup)
	}
	raw, _ := st.GetRawCall(ctx, id)
	if !raw.Processed {
		t.Fatal("raw call must be marked processed")
	}
}

func TestProcessEmergencyCallEmptyDescription(t *testing.T) {
	p, st := testPipeline(t)
	ctx := context.Background()
	id := ingest(t, st, "", nil)

	if err := p.ProcessEmergencyCall(ctx, id); err != nil {
		t.Fatalf("empty description must not fail the pipeline: %v", err)
	}
	enriched, err := st.GetEnrichedByRawID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if enriched == nil {
		t.Fatal("expected enriched row for empty description")
	}
	valid := map[string]bool{"EMS": true, "Fire": true, "Traffic": true}
	if !valid[enriched.EmergencyType] {
		t.Fatalf("emergency type %q outside closed label set", enriched.EmergencyType)
	}
	if enriched.AgeGroup != nil {
		t.Fatalf("missing age must not fabricate a group, got %v", *enriched.AgeGroup)
	}
}

func TestProcessEmergencyCallMissingRow(t *testing.T) {
	p, _ := testPipeline(t)
	if err := p.ProcessEmergencyCall(context.Background(), 424242); err != nil {
		t.Fatalf("missing raw call must log and return nil, got %v", err)
	}
}

func TestProcessEmergencyCallIdempotent(t *testing.T) {
	p, st := testPipeline(t)
	ctx := context.Background()
	id := ingest(t, st, "car crash with injuries", nil)

	if err := p.ProcessEmergencyCall(ctx, id); err != nil {
		t.Fatal(err)
	}
	first, _ := st.GetEnrichedByRawID(ctx, id)
	if err := p.ProcessEmergencyCall(ctx, id); err != nil {
		t.Fatalf("redelivery must be absorbed, got %v", err)
	}
	second, _ := st.GetEnrichedByRawID(ctx, id)
	if first == nil || second == nil || first.ID != second.ID {
		t.Fatalf("redelivery created a second enriched row: %+v vs %+v", first, second)
	}
}

func TestProcessEmergencyCallConcurrentSameID(t *testing.T) {
	p, st := testPipeline(t)
	ctx := context.Background()
	id := ingest(t, st, "smoke reported in basement", nil)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.ProcessEmergencyCall(ctx, id)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent redelivery must not error: %v", err)
		}
	}

	rows, err := st.ListEnriched(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one enriched row, got %d", len(rows))
	}
}

type recordingSubmitter struct {
	mu  sync.Mutex
	ids []int64
}

func (r *recordingSubmitter) Submit(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

func TestBackfillSubmitsUnprocessed(t *testing.T) {
	p, st := testPipeline(t)
	ctx := context.Background()
	processed := ingest(t, st, "kitchen fire", nil)
	pending := ingest(t, st, "person unresponsive", nil)
	if err := p.ProcessEmergencyCall(ctx, processed); err != nil {
		t.Fatal(err)
	}

	sub := &recordingSubmitter{}
	summary, err := Backfill(ctx, st, sub, 50)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Candidates != 1 || summary.Submitted != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(sub.ids) != 1 || sub.ids[0] != pending {
		t.Fatalf("expected only pending id %d, got %v", pending, sub.ids)
	}
}
