package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Bundle pairs a fitted vectorizer, a fitted classifier, and the label
// encoder for one classification stage. Bundles are loaded once at
// startup and never mutated, so concurrent inference needs no locking.
// The label slice is the label encoder: class index i maps to Labels[i].
// Never assume any positional ordering beyond what the artifact states.
type Bundle struct {
	Stage      string     `json:"stage"`
	Vectorizer Vectorizer `json:"vectorizer"`
	Classifier Booster    `json:"classifier"`
	Labels     []string   `json:"labels"`
}

// LoadBundle reads and validates a bundle artifact. A bundle that fails to
// load is a fatal configuration error for the service, not a per-request
// condition.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", path, err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse bundle %s: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("bundle %s: %w", path, err)
	}
	return &b, nil
}

// Validate checks the internal consistency the inference path relies on.
func (b *Bundle) Validate() error {
	if b.Classifier.NClasses < 2 {
		return fmt.Errorf("classifier needs at least 2 classes, has %d", b.Classifier.NClasses)
	}
	if len(b.Labels) != b.Classifier.NClasses {
		return fmt.Errorf("label encoder has %d labels but classifier trained %d classes", len(b.Labels), b.Classifier.NClasses)
	}
	if len(b.Vectorizer.Vocabulary) == 0 {
		return fmt.Errorf("vectorizer vocabulary is empty")
	}
	nFeatures := len(b.Vectorizer.IDF)
	for gram, idx := range b.Vectorizer.Vocabulary {
		if idx < 0 || idx >= nFeatures {
			return fmt.Errorf("vocabulary entry %q index %d outside idf table (%d)", gram, idx, nFeatures)
		}
	}
	for ti, tree := range b.Classifier.Trees {
		if tree.Class < 0 || tree.Class >= b.Classifier.NClasses {
			return fmt.Errorf("tree %d targets unknown class %d", ti, tree.Class)
		}
		for ni, n := range tree.Nodes {
			if n.Leaf {
				continue
			}
			// children always follow their parent in the flattened
			// layout; backward links would let traversal loop forever
			if n.Left <= ni || n.Left >= len(tree.Nodes) || n.Right <= ni || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d has child out of range", ti, ni)
			}
		}
	}
	return nil
}

// Predict classifies text, returning the winning label and the full class
// distribution. Total over the trained label space: every input, including
// the empty string, resolves to some label.
func (b *Bundle) Predict(text string) (string, []float64) {
	probs := b.Classifier.Probabilities(b.Vectorizer.Transform(text))
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return b.Labels[best], probs
}

// Save writes the bundle artifact. Used by the training procedure.
func (b *Bundle) Save(path string) error {
	if err := b.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
