package storage

import (
	"context"

	"github.com/poiesic/lexingest/core"
)

// DedupMode controls what happens when an inserted document's identity key
// collides with an existing document.
type DedupMode int

const (
	// DedupSkip keeps the existing document untouched and reports the insert
	// as deduplicated.
	DedupSkip DedupMode = iota + 1

	// DedupUpsert overwrites the content fields of the existing document and
	// resets its embedding bookkeeping to pending, since the stored vector
	// may no longer match the content.
	DedupUpsert
)

// String returns the wire representation used in configuration and logs.
func (m DedupMode) String() string {
	switch m {
	case DedupSkip:
		return "skip"
	case DedupUpsert:
		return "upsert"
	default:
		return "unknown"
	}
}

// Identity selects the identity function used to derive document IDs, and
// therefore the deduplication key.
type Identity int

const (
	// IdentityContent keys documents by a hash of title and content.
	IdentityContent Identity = iota + 1

	// IdentitySourceURL keys documents by their source URL, falling back to
	// the content hash for documents without one.
	IdentitySourceURL
)

// Key derives the document ID for the given document.
func (id Identity) Key(doc *core.KnowledgeDocument) core.ID {
	if id == IdentitySourceURL && doc.SourceURL != "" {
		return core.IDFromContent("src:" + doc.SourceURL)
	}
	return core.IDFromContent(doc.Title + "\n" + doc.ContentText)
}

// InsertResult reports the outcome of an idempotent insert.
type InsertResult struct {
	Doc          *core.KnowledgeDocument
	Deduplicated bool
}

// DocumentRepository provides operations for managing knowledge documents in
// one logical collection. Implementations must be thread-safe; all embedding
// bookkeeping writes must be per-document keyed updates so concurrent workers
// cannot lose one another's attempt counts.
type DocumentRepository interface {
	// InsertDocument persists a document idempotently. The document's ID is
	// assigned from the identity function; if a document with the same ID
	// already exists the dedup mode decides whether to skip or upsert.
	InsertDocument(ctx context.Context, doc *core.KnowledgeDocument, mode DedupMode) (*InsertResult, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.KnowledgeDocument, error)

	// SelectForEmbedding returns up to limit documents eligible for
	// (re)embedding: pending, or failed with fewer than
	// core.DeadLetterThreshold attempts. Results are ordered by ascending
	// attempt count so starving items get priority.
	SelectForEmbedding(ctx context.Context, limit int) ([]*core.KnowledgeDocument, error)

	// RecordAttempt increments the document's attempt counter and stamps the
	// last-attempt time, before any embedding work happens. Returns the
	// updated document.
	RecordAttempt(ctx context.Context, id core.ID) (*core.KnowledgeDocument, error)

	// SetEmbeddingSuccess stores the vector and marks the document embedded,
	// clearing any previous error.
	SetEmbeddingSuccess(ctx context.Context, id core.ID, vector []float64) error

	// SetEmbeddingFailure marks the document failed with a truncated error
	// message. The attempt counter is not modified here; RecordAttempt
	// already advanced it.
	SetEmbeddingFailure(ctx context.Context, id core.ID, msg string) error

	// CountEligible returns how many documents are currently eligible for
	// embedding per the SelectForEmbedding criteria.
	CountEligible(ctx context.Context) (int, error)

	// CountDeadLetters returns how many documents have crossed the
	// dead-letter threshold.
	CountDeadLetters(ctx context.Context) (int, error)

	// ResetDeadLetters re-admits all dead-lettered documents by setting
	// their status to pending and attempts to zero. Returns the number of
	// documents reset.
	ResetDeadLetters(ctx context.Context) (int, error)

	// FindSimilar finds documents similar to the given vector.
	// Returns documents with similarity >= minSimilarity, up to limit
	// results, ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float64, minSimilarity float64, limit int) ([]*SearchResult, error)

	// Close releases repository resources.
	Close() error
}

// SearchResult pairs a document with its similarity score.
type SearchResult struct {
	Doc   *core.KnowledgeDocument
	Score float64
}
