package core

import "strings"

// SourceKind identifies the acquisition input type of a queue item.
type SourceKind int

const (
	// SourceKindFile is an uploaded file (raw bytes plus a content type).
	SourceKindFile SourceKind = iota + 1
	// SourceKindURL is a web page to scrape.
	SourceKindURL
	// SourceKindText is literal pasted text.
	SourceKindText
	// SourceKindRecord is one structured record from a bulk JSON/JSONL upload.
	SourceKindRecord
)

// String returns the wire representation used in reports and logs.
func (k SourceKind) String() string {
	switch k {
	case SourceKindFile:
		return "file"
	case SourceKindURL:
		return "url"
	case SourceKindText:
		return "text"
	case SourceKindRecord:
		return "jsonlRecord"
	default:
		return "unknown"
	}
}

// Source is the tagged payload union of a queue item. The acquisition step
// switches exhaustively over the concrete types; there are no optional
// untyped fields.
type Source interface {
	// Kind returns the source's kind tag.
	Kind() SourceKind

	// Label returns a human-readable display name for the queue.
	Label() string
}

// FileSource is an uploaded file.
type FileSource struct {
	Name        string
	Data        []byte
	ContentType string
	OCR         bool // Scanned input that needs OCR during extraction
}

func (s FileSource) Kind() SourceKind { return SourceKindFile }
func (s FileSource) Label() string    { return s.Name }

// URLSource is a web page to scrape.
type URLSource struct {
	URL string
}

func (s URLSource) Kind() SourceKind { return SourceKindURL }
func (s URLSource) Label() string    { return s.URL }

// TextSource is literal pasted text with an optional title.
type TextSource struct {
	Title string
	Text  string
}

func (s TextSource) Kind() SourceKind { return SourceKindText }

func (s TextSource) Label() string {
	if s.Title != "" {
		return s.Title
	}
	// Synthesize a title from the first words of the text.
	fields := strings.Fields(s.Text)
	if len(fields) > 8 {
		fields = fields[:8]
	}
	if len(fields) == 0 {
		return "(empty text)"
	}
	return strings.Join(fields, " ")
}

// RecordSource is one structured record from a bulk JSONL upload.
type RecordSource struct {
	Title      string
	Content    string
	Category   string
	SourceName string
	SourceURL  string
	Line       int // 1-based line number in the uploaded file, for reporting
}

func (s RecordSource) Kind() SourceKind { return SourceKindRecord }

func (s RecordSource) Label() string {
	if s.Title != "" {
		return s.Title
	}
	return "(untitled record)"
}
