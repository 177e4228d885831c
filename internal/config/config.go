package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all environment-driven settings.
type Config struct {
	DBPath         string
	HTTPPort       string
	CallsDir       string
	BundleDir      string
	ClassifierYAML string
	ClassifierMode string
	Dispatcher     string
	RedisAddr      string
	RedisQueue     string
	WorkerCount    int
	QueueSize      int
	EnableWatcher  bool
	BackfillLimit  int
	WebhookURL     string
	Environment    string
}

// Dispatcher backends selectable via DISPATCHER.
const (
	DispatcherLocal = "local"
	DispatcherRedis = "redis"
)

// Classifier modes selectable via CLASSIFIER_MODE. Bundle mode is the
// default and treats an unloadable artifact as fatal at startup; keyword
// fallback operation is an explicit opt-in, never an automatic rescue.
const (
	ClassifierModeBundle   = "bundle"
	ClassifierModeFallback = "fallback"
)

// Load reads configuration from environment and optional .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		DBPath:         getenv("DB_PATH", "./crisislens.db"),
		HTTPPort:       getenv("PORT", "8080"),
		CallsDir:       getenv("CALLS_DIR", "./calls"),
		BundleDir:      getenv("BUNDLE_DIR", "./models"),
		ClassifierYAML: getenv("CLASSIFIER_CONFIG", ""),
		ClassifierMode: getenv("CLASSIFIER_MODE", ClassifierModeBundle),
		Dispatcher:     getenv("DISPATCHER", DispatcherLocal),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		RedisQueue:     getenv("REDIS_QUEUE", "crisislens"),
		WorkerCount:    clampInt(getenvInt("WORKER_COUNT", 4), 1, 64),
		QueueSize:      clampInt(getenvInt("QUEUE_SIZE", 128), 8, 1024),
		EnableWatcher:  getenvBool("ENABLE_WATCHER", true),
		BackfillLimit:  clampInt(getenvInt("BACKFILL_LIMIT", 100), 1, 1000),
		WebhookURL:     getenv("WEBHOOK_URL", ""),
		Environment:    getenv("ENVIRONMENT", "local"),
	}

	log.Printf("config: db=%s bundles=%s dispatcher=%s workers=%d env=%s", cfg.DBPath, cfg.BundleDir, cfg.Dispatcher, cfg.WorkerCount, cfg.Environment)
	return cfg
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Now returns utc time helper for deterministic timestamps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
