package embedbatch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name     string
		input    []float64
		expected []float64
	}{
		{
			name:     "unit vector remains unchanged",
			input:    []float64{1.0, 0.0, 0.0},
			expected: []float64{1.0, 0.0, 0.0},
		},
		{
			name:     "scale non-unit vector",
			input:    []float64{3.0, 4.0},
			expected: []float64{0.6, 0.8},
		},
		{
			name:     "negative values",
			input:    []float64{-1.0, 1.0},
			expected: []float64{-1.0 / math.Sqrt2, 1.0 / math.Sqrt2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeVector(tt.input)
			require.Equal(t, len(tt.expected), len(result), "vector length mismatch")

			for i := range result {
				assert.InDelta(t, tt.expected[i], result[i], 1e-9, "element %d", i)
			}

			var magnitude float64
			for _, v := range result {
				magnitude += v * v
			}
			assert.InDelta(t, 1.0, math.Sqrt(magnitude), 1e-9, "magnitude should be 1.0")
		})
	}
}

func TestNormalizeVector_ZeroVector(t *testing.T) {
	result := NormalizeVector([]float64{0.0, 0.0, 0.0})
	for i, v := range result {
		assert.Equal(t, 0.0, v, "element %d should be 0", i)
	}
}

func TestNormalizeVector_EmptyVector(t *testing.T) {
	assert.Empty(t, NormalizeVector([]float64{}))
}

func TestNormalizeVector_DoesNotMutateInput(t *testing.T) {
	input := []float64{3.0, 4.0}
	NormalizeVector(input)
	assert.Equal(t, []float64{3.0, 4.0}, input)
}
