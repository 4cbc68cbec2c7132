package chunker

import (
	"strings"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200

	// A sentence break only shortens a window when it sits inside the final
	// 30% of it; earlier breaks would produce pathologically short chunks.
	boundaryFraction = 0.7
)

// Chunk is one overlapping segment of text. Start is the rune offset of the
// segment within the source text.
type Chunk struct {
	Start int
	Text  string
}

// ChunkText splits text into overlapping segments of at most chunkSize
// runes, preferring to end each segment at a sentence terminator (". ")
// when one falls inside the final 30% of the window. Consecutive chunks
// overlap by at most overlap runes. Deterministic: identical inputs yield
// an identical sequence.
func ChunkText(text string, chunkSize, overlap int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 5
		}
	}

	runes := []rune(text)
	var chunks []Chunk

	start := 0
	for start < len(runes) {
		end := start + chunkSize
		sliceEnd := end
		if sliceEnd > len(runes) {
			sliceEnd = len(runes)
		}

		if end < len(runes) {
			window := string(runes[start:end])
			if i := lastSentenceBreak(window); float64(i) > float64(chunkSize)*boundaryFraction {
				// The +2 keeps the terminator and its trailing space in the
				// chunk. Skipped when the shortened window would stop the
				// start offset from advancing.
				adjusted := start + i + 2
				if adjusted-overlap > start {
					end = adjusted
					sliceEnd = adjusted
				}
			}
		}

		chunks = append(chunks, Chunk{Start: start, Text: string(runes[start:sliceEnd])})
		start = end - overlap
	}

	return chunks
}

// lastSentenceBreak returns the rune index of the last ". " in window,
// or -1 when none exists.
func lastSentenceBreak(window string) int {
	i := strings.LastIndex(window, ". ")
	if i < 0 {
		return -1
	}
	return len([]rune(window[:i]))
}
