package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"crisislens/internal/config"
	"crisislens/internal/dispatch"
	"crisislens/internal/enrich"
	"crisislens/internal/metrics"
	"crisislens/internal/store"
)

// webformSource tags raw calls ingested over HTTP.
const webformSource = "webform"

// Router builds HTTP handlers for /api and /ops.
type Router struct {
	cfg        config.Config
	store      *store.Store
	dispatcher dispatch.Dispatcher
	metrics    *metrics.Metrics
}

func NewRouter(cfg config.Config, st *store.Store, d dispatch.Dispatcher, m *metrics.Metrics) *Router {
	return &Router{cfg: cfg, store: st, dispatcher: d, metrics: m}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/calls", r.calls)
	mux.HandleFunc("/api/calls/latest", r.latest)
	mux.HandleFunc("/api/calls/", r.callDetail)
	mux.HandleFunc("/api/stats/counts", r.counts)
	mux.HandleFunc("/ops/health", r.health)
	mux.HandleFunc("/ops/status", r.status)
	mux.HandleFunc("/ops/backfill", r.backfill)
}

// ingestRequest is the webform payload for a new emergency call.
type ingestRequest struct {
	Description  string   `json:"description"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	District     *string  `json:"district"`
	CallerGender *string  `json:"caller_gender"`
	CallerAge    *int     `json:"caller_age"`
	CallerName   *string  `json:"caller_name"`
	CallerNumber *string  `json:"caller_number"`
}

func (r *Router) calls(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body ingestRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.Description) == "" {
		http.Error(w, "description is required", http.StatusBadRequest)
		return
	}
	if body.CallerAge != nil && (*body.CallerAge < 0 || *body.CallerAge > 130) {
		http.Error(w, "caller_age out of range", http.StatusBadRequest)
		return
	}
	raw := &store.RawCall{
		Timestamp:    config.Now(),
		Description:  body.Description,
		Latitude:     body.Latitude,
		Longitude:    body.Longitude,
		District:     body.District,
		CallerGender: body.CallerGender,
		CallerAge:    body.CallerAge,
		CallerName:   body.CallerName,
		CallerNumber: body.CallerNumber,
		Source:       webformSource,
		CreatedAt:    config.Now(),
	}
	id, err := r.store.InsertRawCall(req.Context(), raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := r.dispatcher.Submit(req.Context(), id); err != nil {
		// stored but not queued; the next backfill picks it up
		log.Printf("ingest: submit call %d: %v", id, err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]any{"raw_id": id, "status": "accepted"}); err != nil {
		log.Printf("write json: %v", err)
	}
}

func (r *Router) latest(w http.ResponseWriter, req *http.Request) {
	limit := 50
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	list, err := r.store.ListEnriched(req.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, list)
}

// callDetail serves /api/calls/{raw_id}: the enriched record if the call
// has been processed, 404 otherwise.
func (r *Router) callDetail(w http.ResponseWriter, req *http.Request) {
	idStr := strings.TrimPrefix(req.URL.Path, "/api/calls/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid call id", http.StatusBadRequest)
		return
	}
	enriched, err := r.store.GetEnrichedByRawID(req.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if enriched == nil {
		http.NotFound(w, req)
		return
	}
	respondJSON(w, enriched)
}

func (r *Router) counts(w http.ResponseWriter, req *http.Request) {
	counts, err := r.store.CountsByType(req.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, counts)
}

func (r *Router) status(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, map[string]any{
		"dispatcher": r.dispatcher.Stats(),
		"metrics":    r.metrics.Snapshot(),
		"workers":    r.cfg.WorkerCount,
	})
}

func (r *Router) backfill(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	summary, err := enrich.Backfill(req.Context(), r.store, r.dispatcher, r.cfg.BackfillLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, summary)
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Health(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json: %v", err)
	}
}
