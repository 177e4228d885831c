package train

import (
	"fmt"
	"math"
	"sort"

	"crisislens/internal/model"
)

// Options are the training hyperparameters for one stage.
type Options struct {
	Stage          string
	NgramMin       int
	NgramMax       int
	MinDF          int
	MaxFeatures    int
	SublinearTF    bool
	Rounds         int
	LearningRate   float64
	MaxDepth       int
	MinSamplesLeaf int
}

// DefaultOptions returns the hyperparameters used for the shipped bundles.
func DefaultOptions() Options {
	return Options{
		NgramMin:       1,
		NgramMax:       3,
		MinDF:          2,
		MaxFeatures:    20000,
		Rounds:         60,
		LearningRate:   0.2,
		MaxDepth:       4,
		MinSamplesLeaf: 2,
	}
}

// hessian regularization term for leaf values and split gains
const lambda = 1.0

// Fit trains a complete bundle: vocabulary and idf table from the corpus,
// then a softmax gradient-boosted ensemble on the resulting vectors.
func Fit(ds *Dataset, opts Options) (*model.Bundle, error) {
	if len(ds.Texts) == 0 {
		return nil, fmt.Errorf("empty dataset")
	}
	labels, y := encodeLabels(ds.Labels)
	if len(labels) < 2 {
		return nil, fmt.Errorf("need at least 2 distinct labels, have %d", len(labels))
	}

	vec, err := fitVectorizer(ds.Texts, opts)
	if err != nil {
		return nil, err
	}
	xs := make([]model.SparseVector, len(ds.Texts))
	for i, text := range ds.Texts {
		xs[i] = vec.Transform(text)
	}

	booster := boost(xs, y, len(labels), opts)
	bundle := &model.Bundle{
		Stage:      opts.Stage,
		Vectorizer: *vec,
		Classifier: *booster,
		Labels:     labels,
	}
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("fitted bundle invalid: %w", err)
	}
	return bundle, nil
}

// Evaluate returns the bundle's accuracy over a labeled dataset.
func Evaluate(b *model.Bundle, ds *Dataset) float64 {
	if len(ds.Texts) == 0 {
		return 0
	}
	correct := 0
	for i, text := range ds.Texts {
		if pred, _ := b.Predict(text); pred == ds.Labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(ds.Texts))
}

// encodeLabels assigns class indices in sorted label order so repeated
// training runs on the same data produce the same encoder.
func encodeLabels(raw []string) ([]string, []int) {
	seen := map[string]bool{}
	for _, l := range raw {
		seen[l] = true
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	y := make([]int, len(raw))
	for i, l := range raw {
		y[i] = index[l]
	}
	return labels, y
}

// fitVectorizer builds the vocabulary from document frequencies and the
// smoothed idf table over it.
func fitVectorizer(texts []string, opts Options) (*model.Vectorizer, error) {
	proto := &model.Vectorizer{NgramMin: opts.NgramMin, NgramMax: opts.NgramMax}
	df := map[string]int{}
	for _, text := range texts {
		inDoc := map[string]bool{}
		for _, gram := range proto.Tokenize(text) {
			inDoc[gram] = true
		}
		for gram := range inDoc {
			df[gram]++
		}
	}

	minDF := opts.MinDF
	if minDF < 1 {
		minDF = 1
	}
	grams := make([]string, 0, len(df))
	for gram, n := range df {
		if n >= minDF {
			grams = append(grams, gram)
		}
	}
	if len(grams) == 0 {
		return nil, fmt.Errorf("no n-gram reaches min_df=%d; corpus too small or too diverse", minDF)
	}
	if opts.MaxFeatures > 0 && len(grams) > opts.MaxFeatures {
		// keep the most frequent grams, alphabetical among ties
		sort.Slice(grams, func(i, j int) bool {
			if df[grams[i]] != df[grams[j]] {
				return df[grams[i]] > df[grams[j]]
			}
			return grams[i] < grams[j]
		})
		grams = grams[:opts.MaxFeatures]
	}
	sort.Strings(grams)

	nDocs := float64(len(texts))
	vocab := make(map[string]int, len(grams))
	idf := make([]float64, len(grams))
	for i, gram := range grams {
		vocab[gram] = i
		idf[i] = math.Log((1+nDocs)/(1+float64(df[gram]))) + 1
	}
	return &model.Vectorizer{
		Vocabulary:  vocab,
		IDF:         idf,
		NgramMin:    opts.NgramMin,
		NgramMax:    opts.NgramMax,
		SublinearTF: opts.SublinearTF,
	}, nil
}

// boost runs softmax gradient boosting: each round fits one depth-limited
// regression tree per class on that class's gradient. Leaf values carry
// the learning rate so inference is a plain sum.
func boost(xs []model.SparseVector, y []int, nClasses int, opts Options) *model.Booster {
	n := len(xs)
	base := classPriors(y, nClasses)
	margins := make([][]float64, n)
	for i := range margins {
		margins[i] = append([]float64(nil), base...)
	}

	booster := &model.Booster{NClasses: nClasses, BaseScore: base}
	grad := make([]float64, n)
	hess := make([]float64, n)
	probs := make([]float64, nClasses)
	for round := 0; round < opts.Rounds; round++ {
		for c := 0; c < nClasses; c++ {
			for i := 0; i < n; i++ {
				softmaxInto(probs, margins[i])
				p := probs[c]
				target := 0.0
				if y[i] == c {
					target = 1.0
				}
				grad[i] = p - target
				hess[i] = p * (1 - p)
			}
			tb := &treeBuilder{xs: xs, grad: grad, hess: hess, opts: opts}
			tb.build(allSamples(n), 0)
			tree := model.Tree{Class: c, Nodes: tb.nodes}
			booster.Trees = append(booster.Trees, tree)
			for i := 0; i < n; i++ {
				margins[i][c] += treeScore(tree, xs[i])
			}
		}
	}
	return booster
}

func classPriors(y []int, nClasses int) []float64 {
	counts := make([]float64, nClasses)
	for _, c := range y {
		counts[c]++
	}
	base := make([]float64, nClasses)
	n := float64(len(y))
	for c := range base {
		p := counts[c] / n
		if p <= 0 {
			p = 1 / n
		}
		base[c] = math.Log(p)
	}
	return base
}

func softmaxInto(dst, scores []float64) {
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}
	var sum float64
	for i, s := range scores {
		dst[i] = math.Exp(s - maxScore)
		sum += dst[i]
	}
	for i := range dst {
		dst[i] /= sum
	}
}

func allSamples(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

func treeScore(t model.Tree, x model.SparseVector) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		nd := t.Nodes[i]
		if nd.Leaf {
			return nd.Value
		}
		if x[nd.Feature] < nd.Threshold {
			i = nd.Left
		} else {
			i = nd.Right
		}
	}
}

// treeBuilder grows one regression tree into a flattened node slice.
type treeBuilder struct {
	xs    []model.SparseVector
	grad  []float64
	hess  []float64
	opts  Options
	nodes []model.Node
}

// build grows the subtree for samples and returns its node index.
func (tb *treeBuilder) build(samples []int, depth int) int {
	var sumG, sumH float64
	for _, i := range samples {
		sumG += tb.grad[i]
		sumH += tb.hess[i]
	}
	if depth >= tb.opts.MaxDepth || len(samples) < 2*tb.opts.MinSamplesLeaf {
		return tb.leaf(sumG, sumH)
	}
	feature, threshold, ok := tb.bestSplit(samples, sumG, sumH)
	if !ok {
		return tb.leaf(sumG, sumH)
	}

	var left, right []int
	for _, i := range samples {
		if tb.xs[i][feature] < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	idx := len(tb.nodes)
	tb.nodes = append(tb.nodes, model.Node{Feature: feature, Threshold: threshold})
	l := tb.build(left, depth+1)
	r := tb.build(right, depth+1)
	tb.nodes[idx].Left = l
	tb.nodes[idx].Right = r
	return idx
}

func (tb *treeBuilder) leaf(sumG, sumH float64) int {
	idx := len(tb.nodes)
	value := -sumG / (sumH + lambda) * tb.opts.LearningRate
	tb.nodes = append(tb.nodes, model.Node{Leaf: true, Value: value})
	return idx
}

// bestSplit scans every feature present in the node's samples. Absent
// features read as zero, matching inference.
func (tb *treeBuilder) bestSplit(samples []int, sumG, sumH float64) (int, float64, bool) {
	parentScore := gainScore(sumG, sumH)
	bestGain := 1e-6
	bestFeature, bestThreshold := -1, 0.0

	features := map[int]bool{}
	for _, i := range samples {
		for f := range tb.xs[i] {
			features[f] = true
		}
	}

	type point struct {
		value   float64
		grad    float64
		hess    float64
	}
	for f := range features {
		points := make([]point, 0, len(samples))
		for _, i := range samples {
			points = append(points, point{value: tb.xs[i][f], grad: tb.grad[i], hess: tb.hess[i]})
		}
		sort.Slice(points, func(a, b int) bool { return points[a].value < points[b].value })

		var leftG, leftH float64
		leftCount := 0
		for k := 0; k < len(points)-1; k++ {
			leftG += points[k].grad
			leftH += points[k].hess
			leftCount++
			if points[k].value == points[k+1].value {
				continue
			}
			if leftCount < tb.opts.MinSamplesLeaf || len(points)-leftCount < tb.opts.MinSamplesLeaf {
				continue
			}
			gain := gainScore(leftG, leftH) + gainScore(sumG-leftG, sumH-leftH) - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (points[k].value + points[k+1].value) / 2
			}
		}
	}
	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func gainScore(g, h float64) float64 {
	return g * g / (h + lambda)
}
