// Package extract provides best-effort text parsers used during ingestion.
//
// ExtractTables scans plain text (OCR output, scraped pages) for tabular
// regions and renders them as Markdown with a quality grade. ParseReferences
// pulls structured citation records out of fenced JSON blocks embedded in
// AI-composed documents.
//
// Both parsers are pure and reentrant. Malformed input never produces an
// error, only fewer results — the upstream text is noisy by nature and a
// parser panic or error here would poison an entire ingestion run.
package extract
