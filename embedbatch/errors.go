package embedbatch

import "errors"

var (
	// ErrRepositoryRequired is returned when a nil repository is provided.
	ErrRepositoryRequired = errors.New("document repository is required")

	// ErrEmbedderRequired is returned when a nil embedder is provided.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
