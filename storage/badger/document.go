package badger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lexingest/core"
	"github.com/poiesic/lexingest/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
// All keys are scoped to one named collection.
type DocumentRepository struct {
	backend    *Backend
	collection string
	identity   storage.Identity
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a document repository for the given collection.
func NewDocumentRepository(backend *Backend, collection string, identity storage.Identity) (storage.DocumentRepository, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection name required", storage.ErrInvalidQuery)
	}
	if identity != storage.IdentityContent && identity != storage.IdentitySourceURL {
		identity = storage.IdentityContent
	}
	return &DocumentRepository{
		backend:    backend,
		collection: collection,
		identity:   identity,
	}, nil
}

// Close releases repository resources.
func (r *DocumentRepository) Close() error {
	return nil
}

// InsertDocument persists a document idempotently under its identity key.
func (r *DocumentRepository) InsertDocument(ctx context.Context, doc *core.KnowledgeDocument, mode storage.DedupMode) (*storage.InsertResult, error) {
	if mode != storage.DedupSkip && mode != storage.DedupUpsert {
		return nil, fmt.Errorf("%w: unknown dedup mode %d", storage.ErrInvalidQuery, mode)
	}
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	id := r.identity.Key(doc)

	var result *storage.InsertResult
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(r.collection, id)
		existing, err := r.readDocument(tx, key)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		if existing == nil {
			doc.Id = id
			doc.EmbeddingStatus = core.EmbeddingPending
			doc.EmbeddingAttempts = 0
			doc.EmbeddingLastAttempt = time.Time{}
			doc.EmbeddingError = ""
			doc.Embedding = nil
			doc.InsertedAt = now
			doc.UpdatedAt = now

			if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
				return err
			}
			if err := r.setStatusIndex(tx, doc); err != nil {
				return err
			}
			result = &storage.InsertResult{Doc: doc, Deduplicated: false}
			return tx.Commit()
		}

		if mode == storage.DedupSkip {
			result = &storage.InsertResult{Doc: existing, Deduplicated: true}
			return nil
		}

		// Upsert: content may have changed, so the stored vector is stale.
		if err := r.deleteStatusIndex(tx, existing); err != nil {
			return err
		}
		existing.Title = doc.Title
		existing.ContentText = doc.ContentText
		existing.Category = doc.Category
		existing.SourceName = doc.SourceName
		existing.SourceURL = doc.SourceURL
		existing.IsActive = doc.IsActive
		existing.ChunkCount = doc.ChunkCount
		existing.EmbeddingStatus = core.EmbeddingPending
		existing.EmbeddingAttempts = 0
		existing.EmbeddingLastAttempt = time.Time{}
		existing.EmbeddingError = ""
		existing.Embedding = nil
		existing.UpdatedAt = now

		if err := tx.Set(key, storage.MarshalDocument(existing)); err != nil {
			return err
		}
		if err := r.setStatusIndex(tx, existing); err != nil {
			return err
		}
		result = &storage.InsertResult{Doc: existing, Deduplicated: true}
		return tx.Commit()
	}, true)

	return result, err
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.KnowledgeDocument, error) {
	var result *core.KnowledgeDocument
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		doc, err := r.readDocument(tx, makeDocumentKey(r.collection, id))
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		result = doc
		return nil
	}, false)
	return result, err
}

// candidate is one status-index entry during selection.
type candidate struct {
	attempts int
	id       core.ID
}

// SelectForEmbedding returns up to limit eligible documents ordered by
// ascending attempt count.
func (r *DocumentRepository) SelectForEmbedding(ctx context.Context, limit int) ([]*core.KnowledgeDocument, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var results []*core.KnowledgeDocument
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		pending, err := r.collectCandidates(tx, core.EmbeddingPending, limit, -1)
		if err != nil {
			return err
		}
		failed, err := r.collectCandidates(tx, core.EmbeddingFailed, limit, core.DeadLetterThreshold)
		if err != nil {
			return err
		}

		merged := mergeByAttempts(pending, failed, limit)
		for _, c := range merged {
			doc, err := r.readDocument(tx, makeDocumentKey(r.collection, c.id))
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
		}
		return nil
	}, false)

	return results, err
}

// RecordAttempt increments the attempt counter before any embedding work.
func (r *DocumentRepository) RecordAttempt(ctx context.Context, id core.ID) (*core.KnowledgeDocument, error) {
	return r.updateKeyed(id, func(doc *core.KnowledgeDocument) {
		doc.EmbeddingAttempts++
		doc.EmbeddingLastAttempt = time.Now().UTC()
	})
}

// SetEmbeddingSuccess stores the vector and clears failure bookkeeping.
func (r *DocumentRepository) SetEmbeddingSuccess(ctx context.Context, id core.ID, vector []float64) error {
	_, err := r.updateKeyed(id, func(doc *core.KnowledgeDocument) {
		doc.EmbeddingStatus = core.EmbeddingSuccess
		doc.Embedding = vector
		doc.EmbeddingError = ""
	})
	return err
}

// SetEmbeddingFailure marks the document failed with a truncated message.
func (r *DocumentRepository) SetEmbeddingFailure(ctx context.Context, id core.ID, msg string) error {
	_, err := r.updateKeyed(id, func(doc *core.KnowledgeDocument) {
		doc.EmbeddingStatus = core.EmbeddingFailed
		doc.Embedding = nil
		doc.EmbeddingError = core.TruncateError(msg)
	})
	return err
}

// CountEligible counts documents the batch worker would still select.
func (r *DocumentRepository) CountEligible(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		pending, err := r.countStatus(tx, core.EmbeddingPending, -1, false)
		if err != nil {
			return err
		}
		failed, err := r.countStatus(tx, core.EmbeddingFailed, core.DeadLetterThreshold, false)
		if err != nil {
			return err
		}
		count = pending + failed
		return nil
	}, false)
	return count, err
}

// CountDeadLetters counts documents parked past the dead-letter threshold.
func (r *DocumentRepository) CountDeadLetters(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		count, err = r.countStatus(tx, core.EmbeddingFailed, core.DeadLetterThreshold, true)
		return err
	}, false)
	return count, err
}

// ResetDeadLetters re-admits every dead-lettered document to the pending pool.
func (r *DocumentRepository) ResetDeadLetters(ctx context.Context) (int, error) {
	reset := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Collect first; mutating while iterating the same prefix is fragile.
		dead, err := r.collectCandidates(tx, core.EmbeddingFailed, -1, -1)
		if err != nil {
			return err
		}
		for _, c := range dead {
			if c.attempts < core.DeadLetterThreshold {
				continue
			}
			key := makeDocumentKey(r.collection, c.id)
			doc, err := r.readDocument(tx, key)
			if err != nil {
				return err
			}
			if doc == nil {
				continue
			}
			if err := r.deleteStatusIndex(tx, doc); err != nil {
				return err
			}
			doc.EmbeddingStatus = core.EmbeddingPending
			doc.EmbeddingAttempts = 0
			doc.EmbeddingError = ""
			doc.UpdatedAt = time.Now().UTC()
			if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
				return err
			}
			if err := r.setStatusIndex(tx, doc); err != nil {
				return err
			}
			reset++
		}
		if reset == 0 {
			return nil
		}
		return tx.Commit()
	}, true)
	return reset, err
}

// FindSimilar scans the collection and ranks documents by dot product.
// Vectors are normalized at persist time, so the dot product is the cosine
// similarity.
func (r *DocumentRepository) FindSimilar(ctx context.Context, vector []float64, minSimilarity float64, limit int) ([]*storage.SearchResult, error) {
	var results []*storage.SearchResult

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocumentScanPrefix(r.collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var doc *core.KnowledgeDocument
			err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			if doc == nil || len(doc.Embedding) == 0 || !doc.IsActive {
				continue
			}

			similarity := dotProduct(vector, doc.Embedding)
			if similarity >= minSimilarity {
				results = append(results, &storage.SearchResult{Doc: doc, Score: similarity})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *storage.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Helper methods

// updateKeyed applies a per-document keyed update in its own transaction,
// maintaining the status index across status or attempt changes.
func (r *DocumentRepository) updateKeyed(id core.ID, mutate func(doc *core.KnowledgeDocument)) (*core.KnowledgeDocument, error) {
	var out *core.KnowledgeDocument
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(r.collection, id)
		doc, err := r.readDocument(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		if err := r.deleteStatusIndex(tx, doc); err != nil {
			return err
		}
		mutate(doc)
		doc.UpdatedAt = time.Now().UTC()

		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}
		if err := r.setStatusIndex(tx, doc); err != nil {
			return err
		}
		out = doc
		return tx.Commit()
	}, true)
	return out, err
}

// readDocument reads a document from the transaction. Missing keys return nil.
func (r *DocumentRepository) readDocument(tx *badger.Txn, key []byte) (*core.KnowledgeDocument, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.KnowledgeDocument
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}

// setStatusIndex writes the status index entry for a document.
// Successfully embedded documents carry no index entry.
func (r *DocumentRepository) setStatusIndex(tx *badger.Txn, doc *core.KnowledgeDocument) error {
	if doc.EmbeddingStatus == core.EmbeddingSuccess {
		return nil
	}
	key := makeStatusIndexKey(r.collection, doc.EmbeddingStatus, doc.EmbeddingAttempts, doc.Id)
	return tx.Set(key, storage.MarshalID(doc.Id))
}

// deleteStatusIndex removes the status index entry matching the document's
// current status and attempt count.
func (r *DocumentRepository) deleteStatusIndex(tx *badger.Txn, doc *core.KnowledgeDocument) error {
	if doc.EmbeddingStatus == core.EmbeddingSuccess {
		return nil
	}
	key := makeStatusIndexKey(r.collection, doc.EmbeddingStatus, doc.EmbeddingAttempts, doc.Id)
	return tx.Delete(key)
}

// collectCandidates walks one status prefix in ascending attempt order.
// maxItems < 0 means unbounded; attemptCeil >= 0 stops the walk at the first
// entry with attempts >= attemptCeil (the index is attempt-ordered).
func (r *DocumentRepository) collectCandidates(tx *badger.Txn, status core.EmbeddingStatus, maxItems, attemptCeil int) ([]candidate, error) {
	prefix := makeStatusScanPrefix(r.collection, status)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var out []candidate
	for iter.Rewind(); iter.Valid(); iter.Next() {
		if maxItems >= 0 && len(out) >= maxItems {
			break
		}
		key := iter.Item().Key()
		attempts := statusIndexAttempts(key, prefix)
		if attemptCeil >= 0 && attempts >= attemptCeil {
			break
		}

		var id core.ID
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return nil, err
		}
		out = append(out, candidate{attempts: attempts, id: id})
	}
	return out, nil
}

// countStatus counts index entries for a status. With aboveCeil false the
// count stops at attemptCeil; with aboveCeil true only entries at or past
// attemptCeil are counted. attemptCeil < 0 counts everything.
func (r *DocumentRepository) countStatus(tx *badger.Txn, status core.EmbeddingStatus, attemptCeil int, aboveCeil bool) (int, error) {
	prefix := makeStatusScanPrefix(r.collection, status)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	count := 0
	for iter.Rewind(); iter.Valid(); iter.Next() {
		attempts := statusIndexAttempts(iter.Item().Key(), prefix)
		if attemptCeil >= 0 {
			if aboveCeil && attempts < attemptCeil {
				continue
			}
			if !aboveCeil && attempts >= attemptCeil {
				break
			}
		}
		count++
	}
	return count, nil
}

// mergeByAttempts merges two attempt-ordered candidate lists, keeping the
// global attempt order, up to limit entries.
func mergeByAttempts(a, b []candidate, limit int) []candidate {
	out := make([]candidate, 0, min(limit, len(a)+len(b)))
	i, j := 0, 0
	for len(out) < limit && (i < len(a) || j < len(b)) {
		switch {
		case i >= len(a):
			out = append(out, b[j])
			j++
		case j >= len(b):
			out = append(out, a[i])
			i++
		case a[i].attempts <= b[j].attempts:
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	return out
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float64) float64 {
	var sum float64
	minLen := min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
