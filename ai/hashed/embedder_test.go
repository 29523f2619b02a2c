package hashed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed_Deterministic(t *testing.T) {
	text := "Гражданский кодекс, статья 51: юридические лица"

	first := Embed(text)
	second := Embed(text)

	require.Len(t, first, Dimensions)
	assert.Equal(t, first, second, "identical input must yield identical vectors bit for bit")
}

func TestEmbed_EmptyInput(t *testing.T) {
	vec := Embed("")

	require.Len(t, vec, Dimensions)
	for i, c := range vec {
		require.False(t, math.IsNaN(c), "component %d is NaN", i)
		require.False(t, math.IsInf(c, 0), "component %d is Inf", i)
		assert.Equal(t, 0.0, c)
	}
}

func TestEmbed_WhitespaceOnlyEqualsEmpty(t *testing.T) {
	assert.Equal(t, Embed(""), Embed("   \t\n  "))
}

func TestEmbed_NormalizationInvariance(t *testing.T) {
	// Case and whitespace runs must not change the vector.
	a := Embed("Contract   LAW\nBasics")
	b := Embed("contract law basics")
	assert.Equal(t, a, b)
}

func TestEmbed_DifferentTextsDiffer(t *testing.T) {
	a := Embed("civil code article fifty one")
	b := Embed("criminal procedure code")
	assert.NotEqual(t, a, b)
}

func TestEmbed_UnitNorm(t *testing.T) {
	vec := Embed("the quick brown fox jumps over the lazy dog")

	var sumSquares float64
	for _, c := range vec {
		sumSquares += c * c
	}
	// Rounding to 6 decimals perturbs the norm slightly.
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-3)
}

func TestEmbed_ComponentsRounded(t *testing.T) {
	vec := Embed("rounding contract check")
	for i, c := range vec {
		scaled := c * 1e6
		assert.InDelta(t, math.Round(scaled), scaled, 1e-6, "component %d not rounded to 6 decimals", i)
	}
}

func TestEmbed_ShortWordsOnlyStillEmbeds(t *testing.T) {
	// Single-rune words are skipped as words, but trigrams still fire when the
	// normalized text is long enough.
	vec := Embed("a b c d")
	var nonZero int
	for _, c := range vec {
		if c != 0 {
			nonZero++
		}
	}
	assert.Positive(t, nonZero)
}

func TestEmbedder_Interface(t *testing.T) {
	e := NewEmbedder()
	ctx := context.Background()

	assert.Equal(t, Dimensions, e.Dimensions())

	single, err := e.EmbedText(ctx, "hello world")
	require.NoError(t, err)
	assert.Equal(t, Embed("hello world"), single)

	batch, err := e.EmbedTexts(ctx, []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, Embed("one"), batch[0])
	assert.Equal(t, Embed("two"), batch[1])
}
