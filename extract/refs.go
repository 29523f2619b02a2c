package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/lexingest/core"
)

// blockDelimiter separates citation blocks in AI-composed documents.
const blockDelimiter = "\n\n---\n\n"

// ParsedReferences is the result of parsing citation-bearing text.
// RawBlocks always contains every delimiter-separated segment, whether or
// not it yielded a SourceRef, so callers can detect silently-dropped blocks.
type ParsedReferences struct {
	Sources   []core.SourceRef
	RawBlocks []string
}

// ParseReferences extracts structured citation records from text composed of
// blocks separated by "\n\n---\n\n". Each block may contain a ```json fenced
// section holding a single object. Invalid blocks are skipped without error;
// block order is preserved in the output.
func ParseReferences(text string) ParsedReferences {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	result := ParsedReferences{}
	for _, block := range strings.Split(text, blockDelimiter) {
		result.RawBlocks = append(result.RawBlocks, block)
		if ref, ok := parseBlock(block); ok {
			result.Sources = append(result.Sources, ref)
		}
	}
	return result
}

// parseBlock validates one block's fenced JSON object against the SourceRef
// rules. Any violation skips the whole block.
func parseBlock(block string) (core.SourceRef, bool) {
	body, ok := fencedJSON(block)
	if !ok {
		return core.SourceRef{}, false
	}

	decoder := json.NewDecoder(strings.NewReader(body))
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return core.SourceRef{}, false
	}

	source, _ := raw["source"].(string)
	if source != "kb" && source != "practice" {
		return core.SourceRef{}, false
	}

	docID, _ := raw["docId"].(string)
	if docID == "" {
		return core.SourceRef{}, false
	}

	chunkNum, ok := raw["chunkIndex"].(json.Number)
	if !ok {
		return core.SourceRef{}, false
	}
	chunkIndex, err := chunkNum.Int64()
	if err != nil {
		// Non-integral or out-of-range values are invalid.
		return core.SourceRef{}, false
	}

	meta, ok := parseMeta(raw["meta"])
	if !ok {
		return core.SourceRef{}, false
	}

	title, _ := raw["title"].(string)
	snippetOnly, _ := raw["snippet_only"].(bool)

	return core.SourceRef{
		Source:      source,
		DocID:       docID,
		ChunkIndex:  int(chunkIndex),
		Title:       title,
		Meta:        meta,
		SnippetOnly: snippetOnly || chunkIndex == -1,
	}, true
}

// parseMeta coerces the optional meta field to a string-keyed string map.
// Absent meta is fine; a non-object meta invalidates the block. Null values
// are dropped, everything else is stringified.
func parseMeta(value any) (map[string]string, bool) {
	if value == nil {
		return nil, true
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}

	meta := make(map[string]string, len(obj))
	for key, v := range obj {
		switch typed := v.(type) {
		case nil:
			continue
		case string:
			meta[key] = typed
		case json.Number:
			meta[key] = typed.String()
		case bool:
			if typed {
				meta[key] = "true"
			} else {
				meta[key] = "false"
			}
		default:
			meta[key] = fmt.Sprintf("%v", typed)
		}
	}
	return meta, true
}

// fencedJSON returns the content of the first ```json fence in the block.
func fencedJSON(block string) (string, bool) {
	start := strings.Index(block, "```json")
	if start == -1 {
		return "", false
	}
	body := block[start+len("```json"):]
	end := strings.Index(body, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(body[:end]), true
}
