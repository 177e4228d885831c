package classify

import (
	"path/filepath"
	"testing"

	"crisislens/internal/config"
	"crisislens/internal/model"
)

// stubBundle votes for one label whenever trigger appears in the text and
// falls back to the first label otherwise.
func stubBundle(labels []string, trigger string, class int) *model.Bundle {
	return &model.Bundle{
		Stage: "test",
		Vectorizer: model.Vectorizer{
			Vocabulary: map[string]int{trigger: 0},
			IDF:        []float64{1},
			NgramMin:   1, NgramMax: 2,
		},
		Classifier: model.Booster{
			NClasses:  len(labels),
			BaseScore: make([]float64, len(labels)),
			Trees: []model.Tree{{
				Class: class,
				Nodes: []model.Node{
					{Feature: 0, Threshold: 1e-9, Left: 1, Right: 2},
					{Leaf: true, Value: 0},
					{Leaf: true, Value: 3},
				},
			}},
		},
		Labels: labels,
	}
}

func testService(t *testing.T) *Service {
	t.Helper()
	main := stubBundle([]string{"EMS", "Fire", "Traffic"}, "fire", 1)
	subtypes := map[string]*model.Bundle{
		"Fire": stubBundle([]string{"Building Fire", "Vehicle Fire"}, "vehicle", 1),
	}
	svc, err := NewService(main, subtypes, "General")
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestClassifyMainClosedWorld(t *testing.T) {
	svc := testService(t)
	inputs := []string{"fire at the mill", "", "chest pain", "ça brûle là-bas", "???"}
	valid := map[string]bool{"EMS": true, "Fire": true, "Traffic": true}
	for _, text := range inputs {
		if label := svc.ClassifyMain(text); !valid[label] {
			t.Fatalf("%q: label %q outside trained set", text, label)
		}
	}
	if got := svc.ClassifyMain("fire spreading fast"); got != "Fire" {
		t.Fatalf("expected Fire, got %s", got)
	}
}

func TestClassifySubtypeCascade(t *testing.T) {
	svc := testService(t)
	if got := svc.ClassifySubtype("vehicle fully involved", "Fire"); got != "Vehicle Fire" {
		t.Fatalf("expected Vehicle Fire, got %s", got)
	}
	// case-insensitive bundle selection
	if got := svc.ClassifySubtype("vehicle fully involved", "fire"); got != "Vehicle Fire" {
		t.Fatalf("expected Vehicle Fire for lowercase main type, got %s", got)
	}
}

func TestClassifySubtypeMissingBundleReturnsSentinel(t *testing.T) {
	svc := testService(t)
	for _, mainType := range []string{"EMS", "Traffic", "NoSuchType", ""} {
		if got := svc.ClassifySubtype("anything", mainType); got != "General" {
			t.Fatalf("main type %q: expected General sentinel, got %s", mainType, got)
		}
	}
}

func TestNewServiceRequiresMainBundle(t *testing.T) {
	if _, err := NewService(nil, nil, "General"); err == nil {
		t.Fatal("expected error for nil main bundle")
	}
}

func TestLoadServiceMissingMainIsFatal(t *testing.T) {
	cfg := config.DefaultClassifierConfig()
	cfg.MainBundle = filepath.Join(t.TempDir(), "missing.bundle.json")
	if _, err := LoadService(cfg); err == nil {
		t.Fatal("expected fatal error for missing main artifact")
	}
}

func TestLoadServiceToleratesMissingSubtypes(t *testing.T) {
	dir := t.TempDir()
	main := stubBundle([]string{"EMS", "Fire", "Traffic"}, "fire", 1)
	mainPath := filepath.Join(dir, "main_type.bundle.json")
	if err := main.Save(mainPath); err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultClassifierConfig()
	cfg.MainBundle = mainPath
	cfg.SubtypeBundles = map[string]string{"ems": filepath.Join(dir, "absent.bundle.json")}
	svc, err := LoadService(cfg)
	if err != nil {
		t.Fatalf("missing subtype bundle must not be fatal: %v", err)
	}
	if got := svc.ClassifySubtype("chest pain", "EMS"); got != "General" {
		t.Fatalf("expected sentinel for unloaded subtype bundle, got %s", got)
	}
}

func TestFallbackPriorityOrder(t *testing.T) {
	fb := NewFallback(config.DefaultClassifierConfig().Fallback)
	cases := []struct {
		text string
		want string
	}{
		// fire outranks medical even when both match
		{"explosion and chest pain", "Fire"},
		{"chest pain and a car crash", "EMS"},
		{"hit and run on main street", "Traffic"},
		{"unclear report, no keywords", "EMS"},
		{"", "EMS"},
	}
	for _, tc := range cases {
		if got := fb.Classify(tc.text); got != tc.want {
			t.Fatalf("%q: got %s want %s", tc.text, got, tc.want)
		}
	}
}

func TestFallbackSubtypeAlwaysSentinel(t *testing.T) {
	fb := NewFallback(config.DefaultClassifierConfig().Fallback)
	if got := fb.ClassifySubtype("vehicle fire", "Fire"); got != config.DefaultSubtypeSentinel {
		t.Fatalf("expected sentinel subtype, got %s", got)
	}
}
