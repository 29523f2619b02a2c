package acquire

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/poiesic/lexingest/core"
)

// acquireFile extracts plain text from an uploaded file via docconv.
// Scanned inputs (src.OCR) route image content through OCR.
func (a *Acquirer) acquireFile(ctx context.Context, src core.FileSource) (*Acquired, error) {
	if len(src.Data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoContent, src.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contentType := src.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(src.Name))
	}
	if contentType == "" {
		return nil, fmt.Errorf("%w: cannot determine type of %s", ErrUnsupportedContentType, src.Name)
	}
	// docconv keys converters on the bare media type.
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}

	res, err := docconv.Convert(bytes.NewReader(src.Data), contentType, src.OCR)
	if err != nil {
		a.logger.Warn("file extraction failed",
			"file", src.Name,
			"contentType", contentType,
			"ocr", src.OCR,
			"error", err)
		return nil, fmt.Errorf("extract %s: %w", src.Name, err)
	}
	if strings.TrimSpace(res.Body) == "" {
		return nil, fmt.Errorf("%w: %s extracted no text", ErrNoContent, src.Name)
	}

	title := res.Meta["Title"]
	if title == "" {
		title = titleFromFilename(src.Name)
	}

	return &Acquired{
		Title: title,
		Text:  res.Body,
	}, nil
}

// titleFromFilename strips the extension and normalizes separators.
func titleFromFilename(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return "(untitled file)"
	}
	return base
}
