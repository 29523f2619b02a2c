// Package mock provides a test double implementation of ai.Embedder.
//
// The mock allows tests to run without external embedding dependencies and
// enables controlled, deterministic behavior:
//
//	// Basic usage with default behavior
//	embedder := mock.NewMockEmbedder()
//	vec, err := embedder.EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float64, error) {
//	    return nil, errors.New("embedding service down")
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
package mock
