package hashed

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/lexingest/ai"
)

// Dimensions is the fixed length of vectors produced by this embedder.
const Dimensions = 768

// Feature weights. Word-level signal is boosted relative to character noise.
const (
	trigramWeight = 1.0
	wordWeight    = 2.0
	bigramWeight  = 1.5
)

// Embedder is a deterministic text embedder built on hashed n-grams.
// Identical input text always yields an identical vector, bit for bit after
// rounding, so re-embedding an unchanged document is a no-op from a search
// ranking perspective. No network, no model weights; cost is O(len(text)).
type Embedder struct{}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder creates a hashed n-gram embedder.
func NewEmbedder() *Embedder {
	return &Embedder{}
}

// Dimensions returns the fixed vector length.
func (e *Embedder) Dimensions() int {
	return Dimensions
}

// EmbedText generates a deterministic embedding for a single text string.
// It never fails; the error return satisfies ai.Embedder.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	return Embed(text), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = Embed(t)
	}
	return out, nil
}

// Embed maps arbitrary text to a fixed-length unit vector.
//
// The text is lowercased, whitespace-collapsed, and trimmed, then three
// feature families are hashed into the vector:
//
//   - overlapping character trigrams, weight ±1
//   - whitespace-delimited words of length >= 2, weight ±2
//   - adjacent word bigrams, weight ±1.5
//
// Each feature contributes to one slot chosen by a content hash; the sign
// comes from the parity of an independent sign hash. The result is
// L2-normalized (with a zero-norm guard for empty input) and rounded to six
// decimal digits for storage compactness and reproducibility.
func Embed(text string) []float64 {
	vec := make([]float64, Dimensions)
	norm := normalizeText(text)

	runes := []rune(norm)
	for i := 0; i+3 <= len(runes); i++ {
		tri := string(runes[i : i+3])
		addFeature(vec, tri+"_c", tri+"_s", trigramWeight)
	}

	words := strings.Fields(norm)
	for _, w := range words {
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		addFeature(vec, "w_"+w, "ws_"+w, wordWeight)
	}

	for i := 0; i+1 < len(words); i++ {
		bigram := words[i] + " " + words[i+1]
		addFeature(vec, "b_"+bigram, "bs_"+bigram, bigramWeight)
	}

	var sumSquares float64
	for _, c := range vec {
		sumSquares += c * c
	}
	norm2 := math.Sqrt(sumSquares)
	if norm2 == 0 {
		norm2 = 1 // Empty input stays a zero vector instead of NaN
	}
	for i := range vec {
		vec[i] = math.Round(vec[i]/norm2*1e6) / 1e6
	}
	return vec
}

// normalizeText lowercases, collapses whitespace runs to single spaces,
// and trims.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// addFeature adds +weight or -weight to the slot selected by the content
// hash, with the sign taken from the parity of the sign hash.
func addFeature(vec []float64, contentKey, signKey string, weight float64) {
	slot := int(hashString(contentKey) % uint32(len(vec)))
	if hashString(signKey)%2 == 1 {
		weight = -weight
	}
	vec[slot] += weight
}

// hashString is a simple polynomial rolling hash over the string's bytes.
func hashString(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return h
}
