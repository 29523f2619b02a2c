package embedbatch

import "math"

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
// Persisted vectors must be unit-length so the store's dot-product ranking is
// a true cosine similarity.
func NormalizeVector(v []float64) []float64 {
	if len(v) == 0 {
		return v
	}

	var magnitude float64
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = math.Sqrt(magnitude)

	// Can't normalize zero vector
	if magnitude == 0 {
		return make([]float64, len(v))
	}

	result := make([]float64, len(v))
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}
