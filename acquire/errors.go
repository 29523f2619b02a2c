package acquire

import "errors"

var (
	// ErrUnsupportedSource indicates a source kind the acquirer cannot handle.
	ErrUnsupportedSource = errors.New("unsupported source kind")

	// ErrUnsupportedContentType indicates a fetched resource of a type the
	// acquirer cannot extract text from.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrNoContent indicates acquisition succeeded but produced no usable text.
	ErrNoContent = errors.New("source produced no content")

	// ErrFetchFailed indicates a URL could not be retrieved.
	ErrFetchFailed = errors.New("fetch failed")
)
