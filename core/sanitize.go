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
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeText strips bytes that common persistence layers reject and that
// silently corrupt downstream search indexing:
//
//   - NUL bytes
//   - lone UTF-16 surrogate code points (and invalid UTF-8 sequences)
//   - control characters other than tab and newline
//
// All legal Unicode letters pass through untouched. \r\n line endings are
// collapsed to \n.
func SanitizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])

		// Invalid UTF-8 byte sequences decode to RuneError with size 1.
		if r == utf8.RuneError && size == 1 {
			i++
			continue
		}
		i += size

		if r == '\t' || r == '\n' {
			b.WriteRune(r)
			continue
		}
		if r == 0 || unicode.IsControl(r) {
			continue
		}
		// Surrogate halves are never valid in well-formed text.
		if r >= 0xD800 && r <= 0xDFFF {
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}
