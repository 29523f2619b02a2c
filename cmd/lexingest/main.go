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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/lexingest"
	"github.com/poiesic/lexingest/acquire"
	"github.com/poiesic/lexingest/ai"
	"github.com/poiesic/lexingest/core"
	"github.com/poiesic/lexingest/embedbatch"
	"github.com/poiesic/lexingest/queue"
	"github.com/poiesic/lexingest/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:   "lexingest",
		Usage:  "Document ingestion and embedding pipeline for the legal knowledge base",
		Before: setupLogger,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Ingest files, URLs, text, or JSONL records into the knowledge base",
				Action: ingestCommand,
				Flags: append(storeFlags(),
					&cli.StringSliceFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "File to ingest (repeatable)",
					},
					&cli.StringSliceFlag{
						Name:    "url",
						Aliases: []string{"u"},
						Usage:   "URL to scrape and ingest (repeatable)",
					},
					&cli.StringFlag{
						Name:  "text",
						Usage: "Literal text to ingest",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Title for literal text input",
					},
					&cli.StringFlag{
						Name:  "jsonl",
						Usage: "Path to a JSONL file of records to bulk-ingest",
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Category applied to documents without one",
					},
					&cli.StringFlag{
						Name:  "source-name",
						Usage: "Source name applied to documents without one",
					},
					&cli.StringFlag{
						Name:  "dedup",
						Usage: "Behavior when a document already exists (skip, upsert)",
						Value: "skip",
					},
					&cli.BoolFlag{
						Name:  "ocr",
						Usage: "Route file extraction through OCR (scanned inputs)",
					},
					&cli.BoolFlag{
						Name:  "no-tables",
						Usage: "Disable table-region enrichment for file and URL sources",
					},
					&cli.StringFlag{
						Name:  "error-report",
						Usage: "Write a JSON error report to this path if items fail",
					},
				),
			},
			{
				Name:   "embed-batch",
				Usage:  "Compute embeddings for pending and retryable documents",
				Action: embedBatchCommand,
				Flags: append(storeFlags(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum documents per batch",
						Value: embedbatch.DefaultBatchLimit,
					},
					&cli.BoolFlag{
						Name:  "drain",
						Usage: "Keep running batches until nothing eligible remains",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents while draining",
						Value: 10,
					},
				),
			},
			{
				Name:   "reset-dead-letters",
				Usage:  "Re-admit dead-lettered documents to the embedding pool",
				Action: resetDeadLettersCommand,
				Flags:  storeFlags(),
			},
			{
				Name:   "status",
				Usage:  "Show embedding backlog and dead-letter counts",
				Action: statusCommand,
				Flags:  storeFlags(),
			},
			{
				Name:      "search",
				Usage:     "Search the knowledge base by semantic similarity",
				Action:    searchCommand,
				ArgsUsage: "<query>",
				Flags: append(storeFlags(),
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Minimum cosine similarity for results",
						Value: 0.3,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// storeFlags are the flags shared by every command that opens the store.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "collection",
			Usage: "Logical collection name",
			Value: "kb",
		},
		&cli.StringFlag{
			Name:  "identity",
			Usage: "Document identity for deduplication (content, source-url)",
			Value: "content",
		},
		&cli.StringFlag{
			Name:  "provider",
			Usage: "Embedding provider (hashed, openai)",
			Value: string(ai.ProviderHashed),
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL (openai provider only)",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name (openai provider only)",
			Value: "embeddinggemma",
		},
	}
}

// openStore builds a Store from the shared flags.
func openStore(c *cli.Context) (*lexingest.Store, error) {
	identity, err := parseIdentity(c.String("identity"))
	if err != nil {
		return nil, err
	}

	aiConfig := ai.NewConfig(
		ai.WithProvider(ai.ProviderKind(c.String("provider"))),
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)

	return lexingest.NewStore(c.String("db"),
		lexingest.WithCollection(c.String("collection")),
		lexingest.WithIdentity(identity),
		lexingest.WithAIConfig(aiConfig),
	)
}

func parseIdentity(s string) (storage.Identity, error) {
	switch s {
	case "content":
		return storage.IdentityContent, nil
	case "source-url":
		return storage.IdentitySourceURL, nil
	default:
		return 0, fmt.Errorf("invalid identity %q: must be content or source-url", s)
	}
}

func parseDedupMode(s string) (storage.DedupMode, error) {
	switch s {
	case "skip":
		return storage.DedupSkip, nil
	case "upsert":
		return storage.DedupUpsert, nil
	default:
		return 0, fmt.Errorf("invalid dedup mode %q: must be skip or upsert", s)
	}
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	dedupMode, err := parseDedupMode(c.String("dedup"))
	if err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	q, err := store.NewQueue(acquire.NewAcquirer(),
		queue.WithDedupMode(dedupMode),
		queue.WithCategory(c.String("category")),
		queue.WithSourceName(c.String("source-name")),
		queue.WithTableExtraction(!c.Bool("no-tables")),
	)
	if err != nil {
		return fmt.Errorf("failed to create queue: %w", err)
	}
	defer q.Release()

	if err := enqueueSources(c, q); err != nil {
		return err
	}
	if len(q.Items()) == 0 {
		return fmt.Errorf("nothing to ingest: provide --file, --url, --text, or --jsonl")
	}

	if err := q.Run(ctx); err != nil {
		return fmt.Errorf("ingestion run failed: %w", err)
	}

	inserted, failed := 0, 0
	for _, item := range q.Items() {
		switch item.Stage {
		case core.StageInserted:
			inserted++
		case core.StageError:
			failed++
			fmt.Fprintf(os.Stderr, "failed: %s: %s\n", item.Label, item.Err)
		}
	}
	fmt.Fprintf(os.Stderr, "Inserted %d document(s), %d failure(s)\n", inserted, failed)

	if failed > 0 && c.String("error-report") != "" {
		data, err := q.ErrorReport().JSON()
		if err != nil {
			return fmt.Errorf("failed to serialize error report: %w", err)
		}
		if err := os.WriteFile(c.String("error-report"), data, 0644); err != nil {
			return fmt.Errorf("failed to write error report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Error report written to %s\n", c.String("error-report"))
	}
	return nil
}

// enqueueSources loads every source named on the command line into the queue.
func enqueueSources(c *cli.Context, q *queue.Queue) error {
	for _, path := range c.StringSlice("file") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		q.Enqueue(core.FileSource{
			Name: filepath.Base(path),
			Data: data,
			OCR:  c.Bool("ocr"),
		})
	}

	for _, url := range c.StringSlice("url") {
		q.Enqueue(core.URLSource{URL: url})
	}

	if text := c.String("text"); text != "" {
		q.Enqueue(core.TextSource{Title: c.String("title"), Text: text})
	}

	if path := c.String("jsonl"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		records, err := acquire.LoadJSONLRecords(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		for _, rec := range records {
			q.Enqueue(rec)
		}
	}
	return nil
}

func embedBatchCommand(c *cli.Context) error {
	ctx := context.Background()

	store, err := openStore(c)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	worker, err := store.NewBatchWorker()
	if err != nil {
		return fmt.Errorf("failed to create batch worker: %w", err)
	}

	var result *embedbatch.BatchResult
	if c.Bool("drain") {
		eligible, err := store.DocumentRepository().CountEligible(ctx)
		if err != nil {
			return fmt.Errorf("failed to count eligible documents: %w", err)
		}
		tracker := embedbatch.NewProgressTracker(os.Stderr, eligible, c.Int("report-interval"))
		tracker.Start()
		result, err = worker.Drain(ctx, c.Int("limit"), tracker)
		tracker.Finish()
		if err != nil {
			return fmt.Errorf("drain failed: %w", err)
		}
	} else {
		result, err = worker.RunBatch(ctx, c.Int("limit"))
		if err != nil {
			return fmt.Errorf("batch failed: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "Processed: %d\nRemaining: %d\nDead letters: %d\n",
		result.ProcessedDocs, result.TotalRemaining, result.DeadLetterCount)
	for _, msg := range result.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	}
	return nil
}

func resetDeadLettersCommand(c *cli.Context) error {
	ctx := context.Background()

	store, err := openStore(c)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	reset, err := store.DocumentRepository().ResetDeadLetters(ctx)
	if err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Re-admitted %d document(s)\n", reset)
	return nil
}

func statusCommand(c *cli.Context) error {
	ctx := context.Background()

	store, err := openStore(c)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	repo := store.DocumentRepository()
	eligible, err := repo.CountEligible(ctx)
	if err != nil {
		return fmt.Errorf("failed to count eligible documents: %w", err)
	}
	dead, err := repo.CountDeadLetters(ctx)
	if err != nil {
		return fmt.Errorf("failed to count dead letters: %w", err)
	}

	fmt.Printf("Eligible for embedding: %d\nDead-lettered: %d\n", eligible, dead)
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a search query is required")
	}

	store, err := openStore(c)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	results, err := store.Search(ctx, query, c.Float64("min-similarity"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%2d. [%.3f] %s (doc %d, %s)\n", i+1, r.Score, r.Doc.Title, r.Doc.Id, r.Doc.Category)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
