package queue

import "strings"

const (
	defaultChunkTokens   = 400
	defaultOverlapTokens = 50
)

// Chunker splits normalized text into retrieval-sized passages. Token counts
// are approximate (~4 characters per token); the goal is stable passage sizes,
// not tokenizer fidelity.
type Chunker struct {
	targetTokens  int
	overlapTokens int
}

// NewChunker creates a chunker. Non-positive targetTokens falls back to the
// default; negative overlap is treated as zero.
func NewChunker(targetTokens, overlapTokens int) *Chunker {
	if targetTokens <= 0 {
		targetTokens = defaultChunkTokens
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	return &Chunker{targetTokens: targetTokens, overlapTokens: overlapTokens}
}

// Split groups the text's non-blank lines into token-bounded chunks,
// carrying an overlap tail from each chunk into the next.
func (c *Chunker) Split(text string) []string {
	var (
		chunks []string
		buf    []string
		tokSum int
	)

	flush := func() {
		if tokSum == 0 {
			return
		}
		chunks = append(chunks, strings.Join(buf, "\n"))

		if c.overlapTokens > 0 {
			var keep []string
			remain := c.overlapTokens
			for j := len(buf) - 1; j >= 0 && remain > 0; j-- {
				keep = append([]string{buf[j]}, keep...)
				remain -= approxTokens(buf[j])
			}
			buf = keep
		} else {
			buf = buf[:0]
		}
		tokSum = 0
		for _, s := range buf {
			tokSum += approxTokens(s)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		buf = append(buf, line)
		tokSum += approxTokens(line)
		if tokSum >= c.targetTokens {
			flush()
		}
	}

	// The overlap tail alone is not a chunk; only flush a tail that carries
	// new content.
	if tokSum > 0 && (len(chunks) == 0 || containsNewContent(buf, chunks[len(chunks)-1])) {
		chunks = append(chunks, strings.Join(buf, "\n"))
	}
	return chunks
}

// containsNewContent reports whether buf holds anything beyond the overlap
// tail carried over from the previous chunk.
func containsNewContent(buf []string, prevChunk string) bool {
	return !strings.HasSuffix(prevChunk, strings.Join(buf, "\n"))
}

// approxTokens is a cheap token estimator (~4 chars per token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
