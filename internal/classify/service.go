// Package classify holds the two-stage emergency type classifier and the
// keyword fallback used when no trained bundle is deployed.
package classify

import (
	"fmt"
	"log"
	"strings"

	"crisislens/internal/config"
	"crisislens/internal/model"
)

// Service answers main-type and subtype classification over read-only
// bundles loaded once at construction. Safe for concurrent use.
type Service struct {
	main           *model.Bundle
	subtypes       map[string]*model.Bundle
	defaultSubtype string
}

// NewService builds a service from already-loaded bundles. Tests inject
// stub bundles here; production goes through LoadService.
func NewService(main *model.Bundle, subtypes map[string]*model.Bundle, defaultSubtype string) (*Service, error) {
	if main == nil {
		return nil, fmt.Errorf("classify: main bundle is required")
	}
	if defaultSubtype == "" {
		defaultSubtype = config.DefaultSubtypeSentinel
	}
	normalized := make(map[string]*model.Bundle, len(subtypes))
	for mainType, b := range subtypes {
		normalized[strings.ToLower(mainType)] = b
	}
	return &Service{main: main, subtypes: normalized, defaultSubtype: defaultSubtype}, nil
}

// LoadService loads every bundle named by the classifier config. A missing
// or corrupt main artifact is fatal; missing subtype bundles are tolerated
// (the cascade falls back to the default subtype for that type).
func LoadService(cfg config.ClassifierConfig) (*Service, error) {
	main, err := model.LoadBundle(cfg.MainBundle)
	if err != nil {
		return nil, fmt.Errorf("classify: load main bundle: %w", err)
	}
	subtypes := make(map[string]*model.Bundle, len(cfg.SubtypeBundles))
	for mainType, path := range cfg.SubtypeBundles {
		b, err := model.LoadBundle(path)
		if err != nil {
			log.Printf("classify: subtype bundle for %s unavailable (%v), cascading to %q", mainType, err, cfg.DefaultSubtype)
			continue
		}
		subtypes[mainType] = b
	}
	log.Printf("classify: loaded main bundle (%d labels) and %d subtype bundles", len(main.Labels), len(subtypes))
	return NewService(main, subtypes, cfg.DefaultSubtype)
}

// ClassifyMain predicts the top-level emergency type. The classifier is
// total over its trained label space: any string input, empty included,
// maps to some deployed label.
func (s *Service) ClassifyMain(description string) string {
	label, _ := s.main.Predict(description)
	return label
}

// ClassifySubtype runs the second cascade stage. Bundle selection is a
// pure function of mainType, not re-derived from the text; when no bundle
// is deployed for that type the default subtype sentinel is returned.
func (s *Service) ClassifySubtype(description, mainType string) string {
	b, ok := s.subtypes[strings.ToLower(mainType)]
	if !ok {
		return s.defaultSubtype
	}
	label, _ := b.Predict(description)
	return label
}

// MainLabels exposes the deployed main-type label set.
func (s *Service) MainLabels() []string {
	return append([]string(nil), s.main.Labels...)
}
