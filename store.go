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


package lexingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/lexingest/acquire"
	"github.com/poiesic/lexingest/ai"
	"github.com/poiesic/lexingest/ai/hashed"
	"github.com/poiesic/lexingest/ai/openai"
	"github.com/poiesic/lexingest/embedbatch"
	"github.com/poiesic/lexingest/queue"
	"github.com/poiesic/lexingest/storage"
	"github.com/poiesic/lexingest/storage/badger"
)

// Store bundles the document repository and embedder behind one handle.
// It is the usual entry point: open a store, build queues and batch workers
// from it, close it when done.
type Store struct {
	backend  *badger.Backend
	docRepo  storage.DocumentRepository
	embedder ai.Embedder
	logger   *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	aiConfig   *ai.Config
	collection string
	identity   storage.Identity
	inMemory   bool
}

// WithAIConfig sets the embedding provider configuration.
// Default is the deterministic hashed embedder.
func WithAIConfig(config *ai.Config) StoreOption {
	return func(o *storeOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithCollection sets the logical collection name documents persist under.
// Default is "kb".
func WithCollection(name string) StoreOption {
	return func(o *storeOptions) {
		if name != "" {
			o.collection = name
		}
	}
}

// WithIdentity sets the document identity function used for deduplication.
// Default is content-hash identity.
func WithIdentity(identity storage.Identity) StoreOption {
	return func(o *storeOptions) {
		o.identity = identity
	}
}

// WithInMemory opens the store without touching disk. Intended for tests.
func WithInMemory() StoreOption {
	return func(o *storeOptions) {
		o.inMemory = true
	}
}

// NewStore opens a document store at filePath.
func NewStore(filePath string, opts ...StoreOption) (*Store, error) {
	options := &storeOptions{
		aiConfig:   ai.DefaultConfig(),
		collection: "kb",
		identity:   storage.IdentityContent,
	}
	for _, opt := range opts {
		opt(options)
	}

	if err := options.aiConfig.Validate(); err != nil {
		return nil, err
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	docRepo, err := badger.NewDocumentRepository(backend, options.collection, options.identity)
	if err != nil {
		backend.Close()
		return nil, err
	}

	embedder, err := newEmbedder(options.aiConfig)
	if err != nil {
		docRepo.Close()
		backend.Close()
		return nil, err
	}

	return &Store{
		backend:  backend,
		docRepo:  docRepo,
		embedder: embedder,
		logger:   slog.Default(),
	}, nil
}

// newEmbedder builds the embedder selected by the provider config.
func newEmbedder(config *ai.Config) (ai.Embedder, error) {
	switch config.Provider {
	case ai.ProviderHashed:
		return hashed.NewEmbedder(), nil
	case ai.ProviderOpenAI:
		return openai.NewEmbedder(config)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", config.Provider)
	}
}

// Close releases the store's resources.
func (s *Store) Close() error {
	if err := s.docRepo.Close(); err != nil {
		s.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// DocumentRepository returns the underlying repository.
func (s *Store) DocumentRepository() storage.DocumentRepository {
	return s.docRepo
}

// Embedder returns the configured embedder.
func (s *Store) Embedder() ai.Embedder {
	return s.embedder
}

// NewQueue creates an ingestion queue writing into this store.
func (s *Store) NewQueue(acquirer *acquire.Acquirer, opts ...queue.Option) (*queue.Queue, error) {
	if acquirer == nil {
		acquirer = acquire.NewAcquirer()
	}
	return queue.NewQueue(s.docRepo, acquirer, opts...)
}

// NewBatchWorker creates an embedding batch worker for this store.
func (s *Store) NewBatchWorker(opts ...embedbatch.Option) (*embedbatch.Worker, error) {
	return embedbatch.NewWorker(s.docRepo, s.embedder, opts...)
}

// Search embeds the query and returns documents ranked by cosine similarity.
func (s *Store) Search(ctx context.Context, query string, minSimilarity float64, limit int) ([]*storage.SearchResult, error) {
	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.docRepo.FindSimilar(ctx, embedbatch.NormalizeVector(vector), minSimilarity, limit)
}
