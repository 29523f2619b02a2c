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


package extract

import (
	"regexp"
	"strings"

	"github.com/poiesic/lexingest/core"
)

// lineKind classifies one line of input text for table-region detection.
type lineKind int

const (
	lineBlank lineKind = iota
	linePlain
	lineCaption
	linePipe
	lineTab
	lineSpaceAligned
)

var (
	// Caption markers in the languages the knowledge base actually carries.
	captionPattern = regexp.MustCompile(`(?i)^(table|таблица|jadval)\s*(№|#)?\s*\d+`)

	// Runs of three or more spaces act as the delimiter for space-aligned rows.
	spaceAlignedSplit = regexp.MustCompile(`\s{3,}`)

	// A Markdown separator row: pipes, dashes, colons and spaces only.
	markdownSeparator = regexp.MustCompile(`^\|?[\s:|-]*-[\s:|-]*\|?$`)
)

func classifyLine(line string) lineKind {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return lineBlank
	}
	if captionPattern.MatchString(trimmed) {
		return lineCaption
	}
	if strings.Count(trimmed, "|") >= 2 {
		return linePipe
	}
	if strings.Count(line, "\t") >= 2 {
		return lineTab
	}
	if len(spaceAlignedSplit.Split(trimmed, -1)) >= 3 {
		return lineSpaceAligned
	}
	return linePlain
}

func isTabular(kind lineKind) bool {
	return kind == linePipe || kind == lineTab || kind == lineSpaceAligned
}

// splitColumns splits one data row into trimmed cells according to the
// region's delimiter rule.
func splitColumns(line string, kind lineKind) []string {
	var parts []string
	switch kind {
	case linePipe:
		trimmed := strings.TrimSpace(line)
		trimmed = strings.TrimPrefix(trimmed, "|")
		trimmed = strings.TrimSuffix(trimmed, "|")
		parts = strings.Split(trimmed, "|")
	case lineTab:
		parts = strings.Split(line, "\t")
	default:
		parts = spaceAlignedSplit.Split(strings.TrimSpace(line), -1)
	}

	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}

// ExtractTables scans plain text for tabular regions and renders each as a
// Markdown table with a quality grade and character offsets into the input.
//
// A region is a contiguous run of at least two lines sharing one tabular
// classification; a single blank-line gap inside the run is tolerated. A
// caption line immediately preceding the run is attached but not counted as
// part of the region's rows.
func ExtractTables(text string) []core.ExtractedTable {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	offsets := lineOffsets(lines)

	var tables []core.ExtractedTable
	i := 0
	for i < len(lines) {
		kind := classifyLine(lines[i])
		if !isTabular(kind) {
			i++
			continue
		}

		// Extend the run as far as matching lines (and at most one blank
		// gap) allow.
		end := i
		gapUsed := false
		j := i + 1
		for j < len(lines) {
			k := classifyLine(lines[j])
			if k == kind {
				end = j
				j++
				continue
			}
			if k == lineBlank && !gapUsed && j+1 < len(lines) && classifyLine(lines[j+1]) == kind {
				gapUsed = true
				j++
				continue
			}
			break
		}

		var rows []string
		for n := i; n <= end; n++ {
			if classifyLine(lines[n]) == kind {
				rows = append(rows, lines[n])
			}
		}
		if len(rows) < 2 {
			i++
			continue
		}

		caption := ""
		if i > 0 && classifyLine(lines[i-1]) == lineCaption {
			caption = strings.TrimSpace(lines[i-1])
		}

		table := renderTable(rows, kind)
		table.Start = offsets[i]
		table.End = offsets[end] + len(lines[end])
		table.Caption = caption
		tables = append(tables, table)

		i = end + 1
	}

	return tables
}

// renderTable turns the raw region rows into a Markdown table and grades it.
func renderTable(rows []string, kind lineKind) core.ExtractedTable {
	var grid [][]string
	for _, row := range rows {
		if markdownSeparator.MatchString(strings.TrimSpace(row)) {
			continue
		}
		grid = append(grid, splitColumns(row, kind))
	}
	if len(grid) == 0 {
		return core.ExtractedTable{}
	}

	maxCols := 0
	consistent := true
	for _, cells := range grid {
		if maxCols > 0 && len(cells) != maxCols {
			consistent = false
		}
		if len(cells) > maxCols {
			maxCols = len(cells)
		}
	}
	for idx, cells := range grid {
		for len(cells) < maxCols {
			cells = append(cells, "")
		}
		grid[idx] = cells
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for _, c := range cells {
			sb.WriteString(" ")
			sb.WriteString(c)
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}
	writeRow(grid[0])
	separator := make([]string, maxCols)
	for idx := range separator {
		separator[idx] = "---"
	}
	writeRow(separator)
	for _, cells := range grid[1:] {
		writeRow(cells)
	}

	return core.ExtractedTable{
		Markdown: strings.TrimSuffix(sb.String(), "\n"),
		RowCount: len(grid),
		ColCount: maxCols,
		Quality:  gradeTable(kind, consistent),
	}
}

// gradeTable assigns the confidence grade surfaced to downstream consumers.
// Pipe and tab delimiters are explicit structure; space alignment is a guess.
func gradeTable(kind lineKind, consistent bool) core.TableQuality {
	switch {
	case kind != lineSpaceAligned && consistent:
		return core.TableQualityHigh
	case kind != lineSpaceAligned || consistent:
		return core.TableQualityMedium
	default:
		return core.TableQualityLow
	}
}

// lineOffsets returns the character offset of each line's start in the
// original text.
func lineOffsets(lines []string) []int {
	offsets := make([]int, len(lines))
	pos := 0
	for i, line := range lines {
		offsets[i] = pos
		pos += len(line) + 1
	}
	return offsets
}
