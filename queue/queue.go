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


package queue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lexingest/acquire"
	"github.com/poiesic/lexingest/core"
	"github.com/poiesic/lexingest/extract"
	"github.com/poiesic/lexingest/storage"
)

const defaultInterItemYield = 50 * time.Millisecond

// Queue drives heterogeneous ingestion sources through the pipeline stages
// queued, parsed, normalized, chunked, jsonl, inserted. Items are processed
// strictly one at a time in enqueue order; the acquirers behind the parse
// stage are rate-sensitive and concurrent fan-out would trip their limits.
//
// A Queue is constructed per session or run and passed explicitly to its
// consumers; there is no ambient singleton.
type Queue struct {
	repo     storage.DocumentRepository
	acquirer *acquire.Acquirer
	chunker  *Chunker
	pool     *ants.Pool
	logger   *slog.Logger

	dedupMode      storage.DedupMode
	category       string
	sourceName     string
	spliceTables   bool
	parseRefs      bool
	interItemYield time.Duration

	mu      sync.Mutex
	items   []*core.QueueItem
	running bool

	aborted atomic.Bool
	wg      sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithDedupMode sets how re-ingesting an already-present document behaves.
// Default is skip.
func WithDedupMode(mode storage.DedupMode) Option {
	return func(q *Queue) {
		q.dedupMode = mode
	}
}

// WithCategory sets the category applied to documents whose source carries
// none.
func WithCategory(category string) Option {
	return func(q *Queue) {
		q.category = category
	}
}

// WithSourceName sets the source name applied to documents whose source
// carries none.
func WithSourceName(name string) Option {
	return func(q *Queue) {
		q.sourceName = name
	}
}

// WithTableExtraction toggles table-region enrichment for file and URL
// sources during the parse stage. Default is enabled.
func WithTableExtraction(enabled bool) Option {
	return func(q *Queue) {
		q.spliceTables = enabled
	}
}

// WithReferenceParsing toggles citation extraction from fenced JSON blocks.
// Default is enabled.
func WithReferenceParsing(enabled bool) Option {
	return func(q *Queue) {
		q.parseRefs = enabled
	}
}

// WithInterItemYield sets the pause between items that keeps the host
// responsive during a long run.
func WithInterItemYield(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.interItemYield = d
		}
	}
}

// WithChunking sets the approximate chunk and overlap sizes in tokens.
func WithChunking(targetTokens, overlapTokens int) Option {
	return func(q *Queue) {
		q.chunker = NewChunker(targetTokens, overlapTokens)
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// NewQueue creates an ingestion queue.
func NewQueue(repo storage.DocumentRepository, acquirer *acquire.Acquirer, opts ...Option) (*Queue, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if acquirer == nil {
		return nil, ErrAcquirerRequired
	}

	// Size-1 pool: the sequencing contract is one item at a time.
	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}

	q := &Queue{
		repo:           repo,
		acquirer:       acquirer,
		chunker:        NewChunker(defaultChunkTokens, defaultOverlapTokens),
		pool:           pool,
		logger:         slog.Default(),
		dedupMode:      storage.DedupSkip,
		spliceTables:   true,
		parseRefs:      true,
		interItemYield: defaultInterItemYield,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Enqueue adds a source to the queue in StageQueued and returns a snapshot
// of the created item.
func (q *Queue) Enqueue(src core.Source) core.QueueItem {
	item := &core.QueueItem{
		Id:     uuid.NewString(),
		Label:  src.Label(),
		Kind:   src.Kind(),
		Stage:  core.StageQueued,
		Source: src,
	}

	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	return *item
}

// Items returns a snapshot of every item in enqueue order.
func (q *Queue) Items() []core.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	snapshot := make([]core.QueueItem, len(q.items))
	for i, item := range q.items {
		snapshot[i] = *item
	}
	return snapshot
}

// Run processes queued items one at a time until none remain, the run is
// aborted, or the context is cancelled. Only one run may be active per queue.
func (q *Queue) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return ErrRunInProgress
	}
	q.running = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}()

	q.aborted.Store(false)

	for {
		// Abort is cooperative: checked between items only, so the current
		// item always completes its stage transitions.
		if q.aborted.Load() {
			q.logger.Info("ingestion run aborted")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		item := q.nextQueued()
		if item == nil {
			return nil
		}

		q.processItem(ctx, item)

		if q.interItemYield > 0 {
			time.Sleep(q.interItemYield)
		}
	}
}

// Start launches Run on the queue's worker pool. Use Wait to block until the
// run finishes.
func (q *Queue) Start(ctx context.Context) error {
	q.wg.Add(1)
	err := q.pool.Submit(func() {
		defer q.wg.Done()
		if runErr := q.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			q.logger.Error("ingestion run failed", "err", runErr)
		}
	})
	if err != nil {
		q.wg.Done()
	}
	return err
}

// Wait blocks until all started runs have finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Abort requests a cooperative stop. The in-flight item finishes its stage
// transitions before the run loop observes the flag.
func (q *Queue) Abort() {
	q.aborted.Store(true)
}

// RetryFailed re-admits every errored item to StageQueued, clearing the error
// and incrementing its retry count. Returns the number of items re-admitted;
// the caller resumes processing with Run or Start.
func (q *Queue) RetryFailed() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, item := range q.items {
		if item.Stage != core.StageError {
			continue
		}
		item.Stage = core.StageQueued
		item.Err = ""
		item.FailedAt = time.Time{}
		item.RetryCount++
		count++
	}
	return count
}

// ClearCompleted removes every inserted item from the queue. Persisted
// documents are untouched. Returns the number of items removed.
func (q *Queue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	removed := 0
	for _, item := range q.items {
		if item.Stage == core.StageInserted {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
	return removed
}

// ErrorReport serializes every errored item for offline triage.
func (q *Queue) ErrorReport() *ErrorReport {
	q.mu.Lock()
	defer q.mu.Unlock()

	report := &ErrorReport{
		ExportedAt: time.Now().UTC(),
		Errors:     []ErrorReportEntry{},
	}
	for _, item := range q.items {
		if item.Stage != core.StageError {
			continue
		}
		report.Errors = append(report.Errors, ErrorReportEntry{
			ItemID:     item.Id,
			Label:      item.Label,
			Source:     item.Kind.String(),
			Stage:      item.Stage.String(),
			Error:      item.Err,
			RetryCount: item.RetryCount,
			Timestamp:  item.FailedAt,
		})
	}
	report.TotalErrors = len(report.Errors)
	return report
}

// Release frees the queue's worker pool. The queue must not be used after
// calling Release.
func (q *Queue) Release() {
	q.pool.Release()
}

// nextQueued returns the first item still in StageQueued, or nil.
func (q *Queue) nextQueued() *core.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item.Stage == core.StageQueued {
			return item
		}
	}
	return nil
}

// processItem advances one item through the pipeline. Failures at any stage
// absorb into StageError; they never propagate to other items.
func (q *Queue) processItem(ctx context.Context, item *core.QueueItem) {
	acquired, err := q.acquirer.Acquire(ctx, item.Source)
	if err != nil {
		q.failItem(item, err)
		return
	}

	text := acquired.Text
	if q.spliceTables && (item.Kind == core.SourceKindFile || item.Kind == core.SourceKindURL) {
		text = spliceTableMarkdown(text)
	}
	q.setStage(item, core.StageParsed)

	title := strings.TrimSpace(core.SanitizeText(acquired.Title))
	content := core.SanitizeText(text)
	if strings.TrimSpace(content) == "" {
		q.failItem(item, ErrEmptyAfterSanitize)
		return
	}
	q.setStage(item, core.StageNormalized)

	chunks := q.chunker.Split(content)
	q.setStage(item, core.StageChunked)

	var refs []core.SourceRef
	if q.parseRefs {
		refs = extract.ParseReferences(content).Sources
	}

	doc := &core.KnowledgeDocument{
		Title:       title,
		ContentText: content,
		Category:    firstNonEmpty(acquired.Category, q.category),
		SourceName:  firstNonEmpty(acquired.SourceName, q.sourceName),
		SourceURL:   acquired.SourceURL,
		IsActive:    true,
		ChunkCount:  len(chunks),
	}
	if err := core.ValidateDocument(doc); err != nil {
		q.failItem(item, err)
		return
	}
	q.setStage(item, core.StageJSONL)

	result, err := q.repo.InsertDocument(ctx, doc, q.dedupMode)
	if err != nil {
		q.failItem(item, err)
		return
	}

	q.mu.Lock()
	item.Result = &core.ItemResult{
		DocID:        result.Doc.Id,
		ChunkCount:   doc.ChunkCount,
		Deduplicated: result.Deduplicated,
		References:   refs,
	}
	item.Stage = core.StageInserted
	q.mu.Unlock()

	q.logger.Info("item inserted",
		"item", item.Id,
		"label", item.Label,
		"docId", result.Doc.Id,
		"chunks", doc.ChunkCount,
		"deduplicated", result.Deduplicated)
}

func (q *Queue) setStage(item *core.QueueItem, stage core.Stage) {
	q.mu.Lock()
	item.Stage = stage
	q.mu.Unlock()

	q.logger.Debug("stage advanced", "item", item.Id, "stage", stage.String())
}

func (q *Queue) failItem(item *core.QueueItem, err error) {
	q.mu.Lock()
	item.Stage = core.StageError
	item.Err = err.Error()
	item.FailedAt = time.Now().UTC()
	q.mu.Unlock()

	q.logger.Warn("item failed",
		"item", item.Id,
		"label", item.Label,
		"source", item.Kind.String(),
		"err", err)
}

// spliceTableMarkdown replaces detected table regions with their Markdown
// rendering, working back to front so earlier offsets stay valid.
func spliceTableMarkdown(text string) string {
	tables := extract.ExtractTables(text)
	for i := len(tables) - 1; i >= 0; i-- {
		t := tables[i]
		if t.Start < 0 || t.End > len(text) || t.Start >= t.End {
			continue
		}
		text = text[:t.Start] + t.Markdown + text[t.End:]
	}
	return text
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
