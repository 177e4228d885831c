package model

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Vectorizer maps free text onto the fixed TF-IDF feature space learned at
// training time. Tokens outside the vocabulary contribute nothing; an
// empty description produces an empty (all-zero) vector, never an error.
type Vectorizer struct {
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	NgramMin    int            `json:"ngram_min"`
	NgramMax    int            `json:"ngram_max"`
	SublinearTF bool           `json:"sublinear_tf"`
}

// SparseVector holds the non-zero TF-IDF weights keyed by feature index.
type SparseVector map[int]float64

// Tokens of two or more word characters, matching the vocabulary builder.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText lowercases and strips accents so "Señor" and "senor" land
// on the same token.
func NormalizeText(text string) string {
	lowered := strings.ToLower(text)
	stripped, _, err := transform.String(accentStripper, lowered)
	if err != nil {
		return lowered
	}
	return stripped
}

// Tokenize splits normalized text into vocabulary-shaped n-grams.
func (v *Vectorizer) Tokenize(text string) []string {
	words := tokenPattern.FindAllString(NormalizeText(text), -1)
	if len(words) == 0 {
		return nil
	}
	lo, hi := v.NgramMin, v.NgramMax
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	var grams []string
	for n := lo; n <= hi; n++ {
		for i := 0; i+n <= len(words); i++ {
			grams = append(grams, strings.Join(words[i:i+n], " "))
		}
	}
	return grams
}

// Transform produces the l2-normalized TF-IDF vector for text.
func (v *Vectorizer) Transform(text string) SparseVector {
	counts := map[int]float64{}
	for _, gram := range v.Tokenize(text) {
		if idx, ok := v.Vocabulary[gram]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return SparseVector{}
	}
	vec := make(SparseVector, len(counts))
	var sumSquares float64
	for idx, tf := range counts {
		if v.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		w := tf
		if idx < len(v.IDF) {
			w *= v.IDF[idx]
		}
		vec[idx] = w
		sumSquares += w * w
	}
	if sumSquares > 0 {
		scale := 1 / math.Sqrt(sumSquares)
		for idx := range vec {
			vec[idx] *= scale
		}
	}
	return vec
}
