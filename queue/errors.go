package queue

import "errors"

var (
	// ErrRepositoryRequired indicates a nil document repository was provided.
	ErrRepositoryRequired = errors.New("document repository is required")

	// ErrAcquirerRequired indicates a nil acquirer was provided.
	ErrAcquirerRequired = errors.New("acquirer is required")

	// ErrRunInProgress indicates Run was called while a run is active.
	ErrRunInProgress = errors.New("queue run already in progress")

	// ErrEmptyAfterSanitize indicates a source's text was entirely stripped
	// by sanitization.
	ErrEmptyAfterSanitize = errors.New("content empty after sanitization")
)
