// Package embedbatch implements the embedding batch worker.
//
// The worker pulls documents whose embedding is pending, or failed with
// fewer attempts than the dead-letter threshold, in ascending attempt order.
// Each document's attempt counter is recorded before any embedding work, so
// even a crashed or concurrently duplicated invocation moves stuck documents
// toward the dead-letter state instead of retrying them unboundedly.
//
// Batches are bounded and invocations are stateless; callers drain a backlog
// by invoking RunBatch until TotalRemaining reaches zero, or use Drain.
package embedbatch
