// Package app wires configuration, storage, the classifier cascade, the
// dispatcher, drop-dir ingestion, and the HTTP surface into one runnable
// service.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"crisislens/internal/classify"
	"crisislens/internal/config"
	"crisislens/internal/dispatch"
	"crisislens/internal/enrich"
	"crisislens/internal/httpapi"
	"crisislens/internal/metrics"
	"crisislens/internal/notify"
	"crisislens/internal/store"
	"crisislens/internal/watch"
)

// jobTimeout bounds one enrichment attempt.
const jobTimeout = 30 * time.Second

// App wires the data plane components together.
type App struct {
	cfg        config.Config
	store      *store.Store
	pipeline   *enrich.Pipeline
	dispatcher dispatch.Dispatcher
	watcher    *watch.Watcher
	metrics    *metrics.Metrics
	mux        *http.ServeMux
}

func New(cfg config.Config) (*App, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	clsCfg, err := config.LoadClassifierConfig(cfg.ClassifierYAML, cfg.BundleDir)
	if err != nil {
		st.Close()
		return nil, err
	}

	m := metrics.New()
	classifier, err := buildClassifier(cfg, clsCfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	pipe := enrich.New(st, classifier, clsCfg, m)

	d, err := buildDispatcher(cfg, pipe.ProcessEmergencyCall)
	if err != nil {
		st.Close()
		return nil, err
	}

	watcher := watch.New(cfg, st, d)
	mux := http.NewServeMux()
	router := httpapi.NewRouter(cfg, st, d, m)
	router.Register(mux)
	return &App{cfg: cfg, store: st, pipeline: pipe, dispatcher: d, watcher: watcher, metrics: m, mux: mux}, nil
}

// buildClassifier loads the trained cascade. An unloadable main bundle is
// a fatal startup error; the keyword classifier runs only when fallback
// mode is explicitly configured.
func buildClassifier(cfg config.Config, clsCfg config.ClassifierConfig) (enrich.Classifier, error) {
	switch cfg.ClassifierMode {
	case config.ClassifierModeFallback:
		log.Printf("classifier: keyword fallback mode configured, bundles not loaded")
		return classify.NewFallback(clsCfg.Fallback), nil
	case config.ClassifierModeBundle, "":
		svc, err := classify.LoadService(clsCfg)
		if err != nil {
			return nil, fmt.Errorf("startup: %w", err)
		}
		log.Printf("classifier loaded: main labels=%v", svc.MainLabels())
		return svc, nil
	default:
		return nil, fmt.Errorf("unknown CLASSIFIER_MODE %q", cfg.ClassifierMode)
	}
}

func buildDispatcher(cfg config.Config, handler dispatch.Handler) (dispatch.Dispatcher, error) {
	switch cfg.Dispatcher {
	case config.DispatcherRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return dispatch.NewRedis(client, cfg.RedisQueue, handler, cfg.WorkerCount, jobTimeout), nil
	default:
		return dispatch.NewLocal(handler, cfg.QueueSize, cfg.WorkerCount, jobTimeout), nil
	}
}

// Run starts workers, watcher, and HTTP server. It blocks until the
// context is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.dispatcher.Start(ctx)
	if err := a.watcher.Start(ctx); err != nil {
		return err
	}
	if err := a.watcher.Backfill(ctx); err != nil {
		log.Printf("drop-dir backfill: %v", err)
	}
	if _, err := enrich.Backfill(ctx, a.store, a.dispatcher, a.cfg.BackfillLimit); err != nil {
		log.Printf("startup backfill: %v", err)
	}
	go notify.New(a.cfg.WebhookURL).Run(ctx, a.pipeline.Events())
	go a.pollStats(ctx)

	srv := &http.Server{Addr: ":" + a.cfg.HTTPPort, Handler: a.mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Printf("http listening on %s", a.cfg.HTTPPort)
	err := srv.ListenAndServe()
	a.dispatcher.Stop(context.Background())
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// pollStats mirrors dispatcher queue stats into the shared metrics so
// /ops/status reports one coherent view.
func (a *App) pollStats(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := a.dispatcher.Stats()
			a.metrics.UpdateQueue(st.QueueLength, st.QueueCapacity, st.WorkerCount)
		}
	}
}

func (a *App) Close() error { return a.store.Close() }

func (a *App) Store() *store.Store             { return a.store }
func (a *App) Dispatcher() dispatch.Dispatcher { return a.dispatcher }
func (a *App) Mux() *http.ServeMux             { return a.mux }
