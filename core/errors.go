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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a KnowledgeDocument failed validation.
	ErrInvalidDocument = errors.New("invalid knowledge document")

	// ErrEmptyContent indicates the ContentText field is empty after sanitization.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyTitle indicates the Title field is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrInvalidSourceKind indicates an invalid SourceKind value.
	ErrInvalidSourceKind = errors.New("invalid source kind")

	// ErrInvalidStage indicates an invalid pipeline Stage value.
	ErrInvalidStage = errors.New("invalid pipeline stage")
)
