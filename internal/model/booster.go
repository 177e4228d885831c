package model

import "math"

// Node is one node in a flattened regression tree. Leaves carry the score
// contribution in Value; interior nodes route on Feature < Threshold.
// Features absent from a sparse vector read as zero, which is how
// out-of-vocabulary input flows through without error.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`
}

// Tree is one boosted regression tree contributing to one class's margin.
type Tree struct {
	Class int    `json:"class"`
	Nodes []Node `json:"nodes"`
}

// Booster is a gradient-boosted tree ensemble with a softmax multiclass
// objective: per round, one tree per class. Leaf values already include
// the learning rate applied at training time.
type Booster struct {
	NClasses  int       `json:"n_classes"`
	BaseScore []float64 `json:"base_score"`
	Trees     []Tree    `json:"trees"`
}

func (t *Tree) score(x SparseVector) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] < n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Margins returns the raw per-class scores for a feature vector.
func (b *Booster) Margins(x SparseVector) []float64 {
	scores := make([]float64, b.NClasses)
	for c := range scores {
		if c < len(b.BaseScore) {
			scores[c] = b.BaseScore[c]
		}
	}
	for i := range b.Trees {
		t := &b.Trees[i]
		if t.Class >= 0 && t.Class < b.NClasses {
			scores[t.Class] += t.score(x)
		}
	}
	return scores
}

// Probabilities softmaxes the margins into a class distribution.
func (b *Booster) Probabilities(x SparseVector) []float64 {
	scores := b.Margins(x)
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	var sum float64
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = math.Exp(s - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
