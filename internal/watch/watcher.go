// Package watch ingests raw call files dropped into CALLS_DIR. Each
// *.json file holds one RawCall payload; the watcher stores it and
// submits the new id for enrichment, tagged with the drop-dir source so
// downstream analytics can tell the channels apart.
package watch

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"crisislens/internal/config"
	"crisislens/internal/enrich"
	"crisislens/internal/store"
)

// SourceTag marks calls ingested through the drop directory.
const SourceTag = "drop-dir"

// rawCallFile is the on-disk payload shape.
type rawCallFile struct {
	Timestamp    *time.Time `json:"timestamp"`
	Description  string     `json:"description"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	District     *string    `json:"district"`
	CallerGender *string    `json:"caller_gender"`
	CallerAge    *int       `json:"caller_age"`
	CallerName   *string    `json:"caller_name"`
	CallerNumber *string    `json:"caller_number"`
}

// Watcher monitors CALLS_DIR for new call files.
type Watcher struct {
	cfg       config.Config
	store     *store.Store
	submitter enrich.Submitter
}

func New(cfg config.Config, st *store.Store, submitter enrich.Submitter) *Watcher {
	return &Watcher{cfg: cfg, store: st, submitter: submitter}
}

func (w *Watcher) Start(ctx context.Context) error {
	if !w.cfg.EnableWatcher {
		log.Println("watcher disabled")
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-watcher.Events:
				if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 && isCallFile(evt.Name) {
					w.ingestFile(ctx, evt.Name)
				}
			case err := <-watcher.Errors:
				log.Printf("watcher error: %v", err)
			}
		}
	}()
	return watcher.Add(w.cfg.CallsDir)
}

// Backfill ingests call files already present in CALLS_DIR.
func (w *Watcher) Backfill(ctx context.Context) error {
	entries, err := filepath.Glob(filepath.Join(w.cfg.CallsDir, "*.json"))
	if err != nil {
		return err
	}
	for _, e := range entries {
		w.ingestFile(ctx, e)
	}
	return nil
}

// IngestFile parses, stores, and submits one dropped call file. The file
// is renamed with a .done suffix afterwards so restarts do not re-ingest
// it.
func (w *Watcher) ingestFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("watch: read %s: %v", path, err)
		return
	}
	var payload rawCallFile
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("watch: malformed call file %s: %v", path, err)
		return
	}
	ts := config.Now()
	if payload.Timestamp != nil {
		ts = *payload.Timestamp
	}
	raw := &store.RawCall{
		Timestamp:    ts,
		Description:  payload.Description,
		Latitude:     payload.Latitude,
		Longitude:    payload.Longitude,
		District:     payload.District,
		CallerGender: payload.CallerGender,
		CallerAge:    payload.CallerAge,
		CallerName:   payload.CallerName,
		CallerNumber: payload.CallerNumber,
		Source:       SourceTag,
		CreatedAt:    config.Now(),
	}
	id, err := w.store.InsertRawCall(ctx, raw)
	if err != nil {
		log.Printf("watch: store %s: %v", path, err)
		return
	}
	if err := w.submitter.Submit(ctx, id); err != nil {
		// row is stored but unqueued; backfill will pick it up
		log.Printf("watch: submit call %d: %v", id, err)
	}
	if err := os.Rename(path, path+".done"); err != nil {
		log.Printf("watch: rename %s: %v", path, err)
	}
	log.Printf("watch: ingested %s as call %d", filepath.Base(path), id)
}

func isCallFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
