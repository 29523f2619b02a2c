package acquire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/lexingest/core"
)

// maxRecordLineBytes bounds a single JSONL line. Legal texts run long but a
// multi-megabyte single record is an upload mistake, not data.
const maxRecordLineBytes = 8 << 20

// acquireRecord surfaces the structured fields of a bulk-upload record.
func acquireRecord(src core.RecordSource) (*Acquired, error) {
	if strings.TrimSpace(src.Content) == "" {
		return nil, fmt.Errorf("%w: record at line %d has no content", ErrNoContent, src.Line)
	}
	return &Acquired{
		Title:      src.Label(),
		Text:       src.Content,
		Category:   src.Category,
		SourceName: src.SourceName,
		SourceURL:  src.SourceURL,
	}, nil
}

// jsonlRecord is the accepted wire shape of one bulk-upload line.
type jsonlRecord struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Category   string `json:"category"`
	SourceName string `json:"sourceName"`
	SourceURL  string `json:"sourceUrl"`
}

// LoadJSONLRecords reads newline-delimited JSON records for bulk ingestion.
// Blank lines are skipped. A malformed line fails the whole load with its
// line number; partial bulk uploads are harder to reason about than a clean
// reject.
func LoadJSONLRecords(r io.Reader) ([]core.RecordSource, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRecordLineBytes)

	var records []core.RecordSource
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var rec jsonlRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, core.RecordSource{
			Title:      rec.Title,
			Content:    rec.Content,
			Category:   rec.Category,
			SourceName: rec.SourceName,
			SourceURL:  rec.SourceURL,
			Line:       line,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
