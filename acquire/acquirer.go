// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/lexingest/core"
)

const (
	defaultFetchTimeout  = 20 * time.Second
	defaultMaxFetchBytes = 4 << 20 // 4 MiB page cap
)

// Acquired is the plain-text output of acquisition. Only record sources
// populate the fields beyond Title and Text.
type Acquired struct {
	Title      string
	Text       string
	Category   string
	SourceName string
	SourceURL  string
}

// Acquirer converts ingestion sources into plain text.
type Acquirer struct {
	client        *http.Client
	maxFetchBytes int
	logger        *slog.Logger
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithHTTPClient overrides the HTTP client used for URL sources.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Acquirer) {
		a.client = client
	}
}

// WithMaxFetchBytes bounds how much of a fetched page is read.
func WithMaxFetchBytes(n int) Option {
	return func(a *Acquirer) {
		a.maxFetchBytes = n
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Acquirer) {
		a.logger = logger
	}
}

// NewAcquirer creates an acquirer with the given options applied.
func NewAcquirer(opts ...Option) *Acquirer {
	a := &Acquirer{
		client:        &http.Client{Timeout: defaultFetchTimeout},
		maxFetchBytes: defaultMaxFetchBytes,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire dispatches on the source variant and returns extracted text.
// The switch is exhaustive over the core.Source implementations; an unknown
// variant is a programming error surfaced as ErrUnsupportedSource.
func (a *Acquirer) Acquire(ctx context.Context, src core.Source) (*Acquired, error) {
	switch s := src.(type) {
	case core.FileSource:
		return a.acquireFile(ctx, s)
	case core.URLSource:
		return a.acquireURL(ctx, s)
	case core.TextSource:
		return acquireText(s)
	case core.RecordSource:
		return acquireRecord(s)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedSource, src)
	}
}

// acquireText passes pasted text through unchanged.
func acquireText(src core.TextSource) (*Acquired, error) {
	if strings.TrimSpace(src.Text) == "" {
		return nil, ErrNoContent
	}
	return &Acquired{
		Title: src.Label(),
		Text:  src.Text,
	}, nil
}
