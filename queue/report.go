package queue

import (
	"encoding/json"
	"time"
)

// ErrorReportEntry describes one failed queue item for offline triage.
type ErrorReportEntry struct {
	ItemID     string    `json:"itemId"`
	Label      string    `json:"label"`
	Source     string    `json:"source"`
	Stage      string    `json:"stage"`
	Error      string    `json:"error"`
	RetryCount int       `json:"retryCount"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorReport is the downloadable summary of every failed item in a queue.
type ErrorReport struct {
	ExportedAt  time.Time          `json:"exportedAt"`
	TotalErrors int                `json:"totalErrors"`
	Errors      []ErrorReportEntry `json:"errors"`
}

// JSON serializes the report for download or attachment.
func (r *ErrorReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
