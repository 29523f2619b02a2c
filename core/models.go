package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Document IDs are generated from the dedup identity key via content-based
// hashing, so re-ingesting the same source yields the same ID.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// EmbeddingStatus tracks where a document is in the embedding lifecycle.
type EmbeddingStatus int

const (
	// EmbeddingPending means the document has not been embedded yet.
	EmbeddingPending EmbeddingStatus = iota + 1
	// EmbeddingSuccess means the document carries a current embedding.
	EmbeddingSuccess
	// EmbeddingFailed means the last embedding attempt failed.
	EmbeddingFailed
)

// String returns the wire representation used in reports and logs.
func (s EmbeddingStatus) String() string {
	switch s {
	case EmbeddingPending:
		return "pending"
	case EmbeddingSuccess:
		return "success"
	case EmbeddingFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DeadLetterThreshold is the number of failed embedding attempts after which
// a document is excluded from automatic retry until an operator resets it.
const DeadLetterThreshold = 5

// MaxEmbeddingErrorLen bounds the stored length of embedding failure messages.
const MaxEmbeddingErrorLen = 500

// KnowledgeDocument is the persisted searchable unit of the knowledge base.
type KnowledgeDocument struct {
	Id          ID
	Title       string
	ContentText string // Sanitized: no NUL bytes, lone surrogates, or control chars
	Category    string
	SourceName  string
	SourceURL   string
	IsActive    bool
	ChunkCount  int

	EmbeddingStatus      EmbeddingStatus
	EmbeddingAttempts    int
	EmbeddingLastAttempt time.Time
	EmbeddingError       string    // Truncated to MaxEmbeddingErrorLen
	Embedding            []float64 // Present only when EmbeddingStatus == EmbeddingSuccess

	InsertedAt time.Time
	UpdatedAt  time.Time
}

// Embeddable reports whether the document is eligible for (re)embedding:
// pending, or failed with fewer than DeadLetterThreshold attempts.
func (d *KnowledgeDocument) Embeddable() bool {
	if d.EmbeddingStatus == EmbeddingPending {
		return true
	}
	return d.EmbeddingStatus == EmbeddingFailed && d.EmbeddingAttempts < DeadLetterThreshold
}

// DeadLettered reports whether the document is permanently parked pending
// a manual reset.
func (d *KnowledgeDocument) DeadLettered() bool {
	return d.EmbeddingStatus == EmbeddingFailed && d.EmbeddingAttempts >= DeadLetterThreshold
}

// Stage is a queue item's position in the ingestion pipeline state machine.
// The order is fixed; progress reporting renders one segment per stage.
type Stage int

const (
	StageQueued Stage = iota + 1
	StageParsed
	StageNormalized
	StageChunked
	StageJSONL
	StageInserted
	StageError
)

// Stages lists the pipeline stages in order, excluding the error state.
// Consumers key progress bars to this exact list.
var Stages = []Stage{StageQueued, StageParsed, StageNormalized, StageChunked, StageJSONL, StageInserted}

// String returns the wire representation used in reports and logs.
func (s Stage) String() string {
	switch s {
	case StageQueued:
		return "queued"
	case StageParsed:
		return "parsed"
	case StageNormalized:
		return "normalized"
	case StageChunked:
		return "chunked"
	case StageJSONL:
		return "jsonl"
	case StageInserted:
		return "inserted"
	case StageError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible from s.
func (s Stage) Terminal() bool {
	return s == StageInserted || s == StageError
}

// ItemResult is populated on a queue item once its document is persisted.
type ItemResult struct {
	DocID        ID
	ChunkCount   int
	Deduplicated bool
	References   []SourceRef // Citations found in AI-composed content, if any
}

// QueueItem is one unit of ingestion work. Items are created in StageQueued
// and mutated only by the queue's stage-advance function.
type QueueItem struct {
	Id         string
	Label      string
	Kind       SourceKind
	Stage      Stage
	Err        string // Present only when Stage == StageError
	RetryCount int
	Source     Source
	Result     *ItemResult
	FailedAt   time.Time // Set when the item enters StageError
}

// TableQuality grades the confidence of an extracted table.
type TableQuality string

const (
	TableQualityHigh   TableQuality = "high"
	TableQualityMedium TableQuality = "medium"
	TableQualityLow    TableQuality = "low"
)

// ExtractedTable is the ephemeral output of the table extractor. It is not
// persisted on its own; its Markdown rendering is spliced into document
// content in place of the raw tabular text.
type ExtractedTable struct {
	Start    int // Character offset of the region start in the source text
	End      int // Character offset one past the region end
	Markdown string
	RowCount int
	ColCount int
	Quality  TableQuality
	Caption  string
}

// SourceRef is a structured citation extracted from AI-composed text.
// ChunkIndex == -1 means the whole document is cited rather than one passage.
type SourceRef struct {
	Source      string // "kb" or "practice"
	DocID       string
	ChunkIndex  int
	Title       string
	Meta        map[string]string
	SnippetOnly bool
}
