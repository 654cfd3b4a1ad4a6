// Package captions splits scene narration into short timed chunks and
// rasterizes each chunk into a transparent caption overlay.
package captions

import (
	"strings"
	"unicode"

	"nightreel/types"
)

// Chunk splits text into groups of at most wordsPerChunk words and shares
// total seconds between them in proportion to their non-space characters.
// Chunks tile [0, total] with no gaps; the last one ends exactly at total.
func Chunk(text string, total float64, wordsPerChunk int) []types.TextChunk {
	words := strings.Fields(text)
	if len(words) == 0 || total <= 0 {
		return nil
	}
	if wordsPerChunk < 1 {
		wordsPerChunk = 1
	}

	var groups []string
	for i := 0; i < len(words); i += wordsPerChunk {
		end := i + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		groups = append(groups, strings.Join(words[i:end], " "))
	}

	weights := make([]int, len(groups))
	sum := 0
	for i, g := range groups {
		weights[i] = visibleChars(g)
		sum += weights[i]
	}
	if sum == 0 {
		sum = 1
	}

	chunks := make([]types.TextChunk, len(groups))
	offset := 0.0
	for i, g := range groups {
		dur := total * float64(weights[i]) / float64(sum)
		if i == len(groups)-1 {
			dur = total - offset
		}
		chunks[i] = types.TextChunk{Text: g, Offset: offset, Duration: dur}
		offset += dur
	}
	return chunks
}

func visibleChars(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
