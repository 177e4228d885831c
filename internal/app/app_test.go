package app

import (
	"path/filepath"
	"strings"
	"testing"

	"crisislens/internal/config"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
	cfg.BundleDir = t.TempDir()
	cfg.Dispatcher = config.DispatcherLocal
	cfg.EnableWatcher = false
	return cfg
}

func TestNewFailsWithoutMainBundle(t *testing.T) {
	cfg := baseConfig(t)
	cfg.ClassifierMode = config.ClassifierModeBundle
	if _, err := New(cfg); err == nil {
		t.Fatal("expected startup failure when the main bundle is missing")
	} else if !strings.Contains(err.Error(), "main bundle") {
		t.Fatalf("error should name the main bundle, got: %v", err)
	}
}

func TestNewFallbackModeIsExplicitOptIn(t *testing.T) {
	cfg := baseConfig(t)
	cfg.ClassifierMode = config.ClassifierModeFallback
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("fallback mode should start without bundles: %v", err)
	}
	a.Close()
}

func TestNewRejectsUnknownClassifierMode(t *testing.T) {
	cfg := baseConfig(t)
	cfg.ClassifierMode = "guess"
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unknown classifier mode")
	}
}
