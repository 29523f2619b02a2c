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


package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a KnowledgeDocument before persistence.
//
// Validation rules:
//   - Title must not be blank
//   - ContentText must not be blank and must already be sanitized
//
// NOT validated (populated by the batch worker):
//   - Embedding and embedding bookkeeping fields
//   - ID (assigned by the identity function at insert time)
func ValidateDocument(doc *KnowledgeDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if strings.TrimSpace(doc.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyTitle)
	}

	if strings.TrimSpace(doc.ContentText) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}

	if doc.ContentText != SanitizeText(doc.ContentText) {
		return fmt.Errorf("%w: content contains unsanitized bytes", ErrInvalidDocument)
	}

	return nil
}

// ValidateSourceKind validates that a SourceKind has a valid value.
func ValidateSourceKind(kind SourceKind) error {
	switch kind {
	case SourceKindFile, SourceKindURL, SourceKindText, SourceKindRecord:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidSourceKind, kind)
	}
}

// TruncateError bounds an error message for storage in the
// EmbeddingError field.
func TruncateError(msg string) string {
	if len(msg) <= MaxEmbeddingErrorLen {
		return msg
	}
	// Cut on a rune boundary.
	cut := MaxEmbeddingErrorLen
	for cut > 0 && !isRuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
