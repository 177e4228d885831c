package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClassifierConfig captures the deployed classification setup: which bundle
// artifacts to load, the cascade's default subtype, the keyword fallback
// table, and the simulated response-time ranges per emergency type. The
// file is YAML (JSON is accepted because it is a subset of YAML 1.2).
type ClassifierConfig struct {
	MainBundle     string            `yaml:"main_bundle"`
	SubtypeBundles map[string]string `yaml:"subtype_bundles"`
	DefaultSubtype string            `yaml:"default_subtype"`
	Fallback       FallbackConfig    `yaml:"fallback"`
	ResponseTimes  []ResponseRange   `yaml:"response_time_minutes"`
}

// FallbackConfig drives the keyword classifier. Categories are matched in
// slice order; the first category with a keyword hit wins.
type FallbackConfig struct {
	DefaultCategory string             `yaml:"default_category"`
	Categories      []FallbackCategory `yaml:"categories"`
}

// FallbackCategory pairs a label with its ordered keyword list.
type FallbackCategory struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// ResponseRange bounds the simulated response time for one emergency type.
// response_time is a synthetic placeholder until dispatch feeds us a
// measured value.
type ResponseRange struct {
	EmergencyType string `yaml:"emergency_type"`
	MinMinutes    int    `yaml:"min_minutes"`
	MaxMinutes    int    `yaml:"max_minutes"`
}

// DefaultSubtypeSentinel is returned by the cascade when no subtype bundle
// exists for a main type.
const DefaultSubtypeSentinel = "General"

// DefaultClassifierConfig returns the baked-in deployment defaults. Bundle
// paths are relative to BUNDLE_DIR.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		MainBundle: "main_type.bundle.json",
		SubtypeBundles: map[string]string{
			"ems":     "subtype_ems.bundle.json",
			"fire":    "subtype_fire.bundle.json",
			"traffic": "subtype_traffic.bundle.json",
		},
		DefaultSubtype: DefaultSubtypeSentinel,
		Fallback: FallbackConfig{
			DefaultCategory: "EMS",
			Categories: []FallbackCategory{
				{
					Category: "Fire",
					Keywords: []string{"fire", "smoke", "explosion", "burning", "flames", "blaze"},
				},
				{
					Category: "EMS",
					Keywords: []string{
						"heart attack", "cardiac", "chest pain", "fever", "vomiting", "injury",
						"collapsed", "ambulance", "stroke", "unconscious", "unresponsive",
						"dizziness", "fall", "head injury", "allergic reaction", "respiratory",
						"breathing", "asthma", "seizure", "overdose",
					},
				},
				{
					Category: "Traffic",
					Keywords: []string{
						"gunshot", "gunshots", "robbery", "shooting", "theft", "burglary",
						"assault", "car accident", "accident", "crash", "traffic", "hit and run",
					},
				},
			},
		},
		ResponseTimes: []ResponseRange{
			{EmergencyType: "Fire", MinMinutes: 4, MaxMinutes: 8},
			{EmergencyType: "EMS", MinMinutes: 6, MaxMinutes: 12},
			{EmergencyType: "Traffic", MinMinutes: 8, MaxMinutes: 15},
		},
	}
}

// LoadClassifierConfig reads the YAML file at path and overlays it onto the
// defaults. An empty path returns the defaults unchanged. Bundle paths in
// the result are resolved against bundleDir.
func LoadClassifierConfig(path, bundleDir string) (ClassifierConfig, error) {
	cfg := DefaultClassifierConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return ClassifierConfig{}, fmt.Errorf("read classifier config: %w", err)
		}
		var overlay ClassifierConfig
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return ClassifierConfig{}, fmt.Errorf("parse classifier config: %w", err)
		}
		cfg = mergeClassifierConfig(cfg, overlay)
	}
	if err := cfg.validate(); err != nil {
		return ClassifierConfig{}, err
	}
	cfg.MainBundle = resolveBundlePath(bundleDir, cfg.MainBundle)
	for k, v := range cfg.SubtypeBundles {
		cfg.SubtypeBundles[k] = resolveBundlePath(bundleDir, v)
	}
	return cfg, nil
}

func mergeClassifierConfig(base, overlay ClassifierConfig) ClassifierConfig {
	if overlay.MainBundle != "" {
		base.MainBundle = overlay.MainBundle
	}
	if len(overlay.SubtypeBundles) > 0 {
		base.SubtypeBundles = overlay.SubtypeBundles
	}
	if overlay.DefaultSubtype != "" {
		base.DefaultSubtype = overlay.DefaultSubtype
	}
	if overlay.Fallback.DefaultCategory != "" {
		base.Fallback.DefaultCategory = overlay.Fallback.DefaultCategory
	}
	if len(overlay.Fallback.Categories) > 0 {
		base.Fallback.Categories = overlay.Fallback.Categories
	}
	if len(overlay.ResponseTimes) > 0 {
		base.ResponseTimes = overlay.ResponseTimes
	}
	return base
}

func (c ClassifierConfig) validate() error {
	if c.MainBundle == "" {
		return errors.New("classifier config: main_bundle is required")
	}
	if c.DefaultSubtype == "" {
		return errors.New("classifier config: default_subtype is required")
	}
	if c.Fallback.DefaultCategory == "" {
		return errors.New("classifier config: fallback.default_category is required")
	}
	for _, cat := range c.Fallback.Categories {
		if cat.Category == "" || len(cat.Keywords) == 0 {
			return fmt.Errorf("classifier config: fallback category %q needs a name and keywords", cat.Category)
		}
	}
	for _, rr := range c.ResponseTimes {
		if rr.MinMinutes <= 0 || rr.MaxMinutes < rr.MinMinutes {
			return fmt.Errorf("classifier config: bad response range for %q", rr.EmergencyType)
		}
	}
	return nil
}

// ResponseRangeFor returns the configured minute range for an emergency
// type, falling back to the widest configured range for unknown types.
func (c ClassifierConfig) ResponseRangeFor(emergencyType string) ResponseRange {
	for _, rr := range c.ResponseTimes {
		if strings.EqualFold(rr.EmergencyType, emergencyType) {
			return rr
		}
	}
	if len(c.ResponseTimes) > 0 {
		return c.ResponseTimes[len(c.ResponseTimes)-1]
	}
	return ResponseRange{MinMinutes: 8, MaxMinutes: 15}
}

func resolveBundlePath(bundleDir, p string) string {
	if p == "" || filepath.IsAbs(p) || bundleDir == "" {
		return p
	}
	return filepath.Join(bundleDir, p)
}
