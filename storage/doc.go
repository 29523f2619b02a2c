// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storage provides the document store abstraction for lexingest.
//
// This package defines the DocumentRepository interface that decouples the
// ingestion queue and the embedding batch worker from the storage backend.
// The only shipped backend is BadgerDB (storage/badger), but the interface
// allows alternatives (PostgreSQL, in-memory, etc.) to be used
// interchangeably.
//
// # Constructor Return Type Pattern
//
// Public constructors return the interface type to enforce abstraction:
//
//	repo, err := badger.NewDocumentRepository(backend, "kb")  // storage.DocumentRepository
//
// # Keyed Updates
//
// The embedding bookkeeping methods (RecordAttempt, SetEmbeddingSuccess,
// SetEmbeddingFailure) are per-document keyed updates executed in their own
// transaction. This is a contract, not an implementation detail: concurrent
// batch workers must never lose one another's attempt counts, which a blind
// batch overwrite would allow.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support concurrent
// access from multiple goroutines.
package storage
