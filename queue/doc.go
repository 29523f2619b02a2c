// Package queue implements the ingestion queue orchestrator.
//
// Sources enqueue as items in StageQueued and advance through a linear state
// machine (queued, parsed, normalized, chunked, jsonl, inserted) with a
// single absorbing error state. A run processes items strictly one at a time
// in enqueue order; abort is cooperative and observed only between items.
// Failed items can be re-admitted in bulk with RetryFailed and exported as a
// JSON error report for triage.
package queue
