// Package acquire turns heterogeneous ingestion sources into plain text.
//
// An Acquirer dispatches on the core.Source variant: uploaded files go
// through docconv (PDF, DOCX, images via OCR), URLs are fetched and reduced
// to their main content with goquery, pasted text passes through as-is, and
// JSONL records surface their structured fields directly.
//
// Acquirers are the only part of ingestion that touches the network or the
// local filesystem; everything downstream operates on the text they return.
package acquire
