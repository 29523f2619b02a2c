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


package embedbatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/lexingest/ai"
	"github.com/poiesic/lexingest/core"
	"github.com/poiesic/lexingest/storage"
)

const (
	// DefaultBatchLimit keeps single invocations short so callers in
	// request-scoped environments can re-invoke until drained.
	DefaultBatchLimit = 10

	// embedInputLimit bounds the characters fed to the embedder so vector
	// semantics stay stable regardless of document size.
	embedInputLimit = 4000

	defaultMaxRetries     = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
)

// BatchResult is the aggregate outcome of one RunBatch invocation. A caller
// drains a backlog by looping while TotalRemaining > 0 and ProcessedDocs > 0.
type BatchResult struct {
	ProcessedDocs   int      `json:"processedDocs"`
	TotalRemaining  int      `json:"totalRemaining"`
	DeadLetterCount int      `json:"deadLetterCount"`
	Errors          []string `json:"errors,omitempty"`
}

// Worker computes embeddings for pending and retryable documents.
// A Worker is stateless per invocation; concurrent invocations against the
// same collection are tolerated because attempts are recorded before any
// embedding work happens.
type Worker struct {
	repo           storage.DocumentRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithMaxRetries sets how often a transient embedder call is retried within
// one attempt. This is distinct from the document's attempt counter.
func WithMaxRetries(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxRetries = n
		}
	}
}

// WithRetryBaseDelay sets the base delay for embedder-call backoff.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.retryBaseDelay = d
		}
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWorker creates an embedding batch worker.
func NewWorker(repo storage.DocumentRepository, embedder ai.Embedder, opts ...Option) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	w := &Worker{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     defaultMaxRetries,
		retryBaseDelay: defaultRetryBaseDelay,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// RunBatch selects up to limit eligible documents (pending first by starving-
// item priority, then retryable failures), embeds each, and persists the
// outcome. One document's failure never aborts the batch. limit <= 0 uses
// DefaultBatchLimit.
func (w *Worker) RunBatch(ctx context.Context, limit int) (*BatchResult, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	docs, err := w.repo.SelectForEmbedding(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("select for embedding: %w", err)
	}

	result := &BatchResult{}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Record the attempt before any work so a crash mid-batch still
		// advances the counter toward the dead-letter threshold.
		updated, err := w.repo.RecordAttempt(ctx, doc.Id)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("doc %d: record attempt: %v", doc.Id, err))
			continue
		}

		vector, err := w.embedDocument(ctx, updated)
		if err != nil {
			w.logger.Warn("embedding failed",
				"doc", updated.Id,
				"attempts", updated.EmbeddingAttempts,
				"err", err)
			if failErr := w.repo.SetEmbeddingFailure(ctx, updated.Id, err.Error()); failErr != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("doc %d: persist failure: %v", updated.Id, failErr))
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("doc %d: %v", updated.Id, err))
			continue
		}

		if err := w.repo.SetEmbeddingSuccess(ctx, updated.Id, vector); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("doc %d: persist embedding: %v", updated.Id, err))
			continue
		}
		result.ProcessedDocs++
	}

	remaining, err := w.repo.CountEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("count eligible: %w", err)
	}
	dead, err := w.repo.CountDeadLetters(ctx)
	if err != nil {
		return nil, fmt.Errorf("count dead letters: %w", err)
	}
	result.TotalRemaining = remaining
	result.DeadLetterCount = dead

	w.logger.Info("batch complete",
		"processed", result.ProcessedDocs,
		"remaining", result.TotalRemaining,
		"deadLetters", result.DeadLetterCount,
		"errors", len(result.Errors))
	return result, nil
}

// Drain repeatedly runs batches until nothing eligible remains or a batch
// makes no progress. The optional tracker receives per-batch updates.
func (w *Worker) Drain(ctx context.Context, limit int, tracker *ProgressTracker) (*BatchResult, error) {
	total := &BatchResult{}
	for {
		batch, err := w.RunBatch(ctx, limit)
		if err != nil {
			return total, err
		}

		total.ProcessedDocs += batch.ProcessedDocs
		total.TotalRemaining = batch.TotalRemaining
		total.DeadLetterCount = batch.DeadLetterCount
		total.Errors = append(total.Errors, batch.Errors...)

		if tracker != nil {
			tracker.Increment(batch.ProcessedDocs)
		}

		if batch.TotalRemaining == 0 || batch.ProcessedDocs == 0 {
			return total, nil
		}
	}
}

// ResetDeadLetters re-admits every dead-lettered document to the eligible
// pool. Returns the number of documents reset.
func (w *Worker) ResetDeadLetters(ctx context.Context) (int, error) {
	return w.repo.ResetDeadLetters(ctx)
}

// embedDocument computes the normalized embedding for one document.
func (w *Worker) embedDocument(ctx context.Context, doc *core.KnowledgeDocument) ([]float64, error) {
	input := embeddingInput(doc)

	var vector []float64
	err := RetryWithBackoff(ctx, func() error {
		var embedErr error
		vector, embedErr = w.embedder.EmbedText(ctx, input)
		return embedErr
	}, w.maxRetries, w.retryBaseDelay)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("embedder returned empty vector for doc %d", doc.Id)
	}

	return NormalizeVector(vector), nil
}

// embeddingInput builds the text fed to the embedder: title plus content,
// truncated to a bounded prefix on a rune boundary.
func embeddingInput(doc *core.KnowledgeDocument) string {
	input := doc.Title + "\n\n" + doc.ContentText
	runes := []rune(input)
	if len(runes) > embedInputLimit {
		input = string(runes[:embedInputLimit])
	}
	return input
}
