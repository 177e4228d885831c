package classify

import (
	"strings"

	"crisislens/internal/config"
)

// Fallback is the keyword-rule classifier used when no trained bundle is
// deployed, or as an independent cross-check. Categories are tested in
// configured order; fire keywords come first because life-safety signals
// outrank everything else. Deterministic and stateless.
type Fallback struct {
	categories      []config.FallbackCategory
	defaultCategory string
}

// NewFallback builds the classifier from the ordered category table.
func NewFallback(cfg config.FallbackConfig) *Fallback {
	return &Fallback{categories: cfg.Categories, defaultCategory: cfg.DefaultCategory}
}

// Classify returns the first category whose keyword list matches the
// description, or the default catch-all when nothing matches.
func (f *Fallback) Classify(description string) string {
	text := strings.ToLower(description)
	for _, cat := range f.categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(text, kw) {
				return cat.Category
			}
		}
	}
	return f.defaultCategory
}

// ClassifyMain satisfies the same contract as the trained service so the
// pipeline can run bundle-less deployments on keywords alone.
func (f *Fallback) ClassifyMain(description string) string {
	return f.Classify(description)
}

// ClassifySubtype always cascades to the sentinel: keyword rules have no
// subtype resolution.
func (f *Fallback) ClassifySubtype(description, mainType string) string {
	return config.DefaultSubtypeSentinel
}
