// Package ai defines the embedding abstraction used by the ingestion
// pipeline and the batch worker.
//
// Two implementations exist:
//   - ai/hashed: a deterministic hashed n-gram embedder with no external
//     dependencies, used when no embedding model is configured.
//   - ai/openai: a remote embedder speaking the OpenAI embeddings API,
//     for OpenAI-compatible services such as Ollama or vLLM.
//
// Both are selected through Config and are interchangeable behind the
// Embedder interface.
package ai
