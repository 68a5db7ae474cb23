// Package chunk splits document text into overlapping character windows for
// embedding. Splitting is character-based (not token-based): an English
// token is approximated as 4 characters, so a 1024-token document budget
// becomes a 4096-character window.
package chunk

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// CharsPerToken approximates English tokens as 4 characters.
	CharsPerToken = 4

	// DefaultDocumentTokens is the document-length budget ColBERT-Zero
	// generalizes well beyond its 519-token training length up to.
	DefaultDocumentTokens = 1024

	// DefaultChunkSize is DefaultDocumentTokens expressed in characters.
	DefaultChunkSize = DefaultDocumentTokens * CharsPerToken

	// DefaultOverlap is zero: minimizing chunk count over maximizing recall
	// at chunk boundaries.
	DefaultOverlap = 0

	// wordBoundaryLookback bounds how far Split backtracks to find a
	// whitespace break before falling back to a hard cut.
	wordBoundaryLookback = 100
)

// Chunk is one window of a larger document.
type Chunk struct {
	Text string
	// Index is this chunk's zero-based position within the document.
	Index int
	// StartOffset is the byte offset where Text begins in the source string.
	StartOffset int
}

// Chunker splits document text into Chunks using a fixed size and overlap.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New builds a Chunker. Non-positive chunkSize falls back to
// DefaultChunkSize; negative overlap falls back to DefaultOverlap.
func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// Chunk splits text per the Chunker's configured size and overlap.
func (c *Chunker) Chunk(text string) []Chunk {
	return Split(text, c.chunkSize, c.overlap)
}

// Split splits text into possibly-overlapping windows of at most chunkSize
// characters, snapping window boundaries to the nearest preceding
// whitespace when one exists within the last 100 characters. Text no
// longer than chunkSize returns as a single chunk. A trailing window
// shorter than chunkSize/4 is dropped rather than emitted, since it adds
// mostly overlap with the preceding chunk.
func Split(text string, chunkSize, overlap int) []Chunk {
	runes := []rune(text)
	charCount := len(runes)

	if charCount <= chunkSize {
		return []Chunk{{Text: text, Index: 0, StartOffset: 0}}
	}

	byteOffsets := make([]int, charCount+1)
	offset := 0
	for i, r := range runes {
		byteOffsets[i] = offset
		offset += utf8.RuneLen(r)
	}
	byteOffsets[charCount] = offset

	step := chunkSize - overlap
	if step < 1 {
		step = 1
	}

	var chunks []Chunk
	startChar := 0
	index := 0

	for startChar < charCount {
		endChar := startChar + chunkSize
		if endChar > charCount {
			endChar = charCount
		}

		chunkEndChar := endChar
		if endChar < charCount {
			chunkEndChar = findWordBoundary(runes, endChar)
		}

		startByte := byteOffsets[startChar]
		endByte := byteOffsets[chunkEndChar]

		chunkText := text[startByte:endByte]
		if strings.TrimSpace(chunkText) != "" {
			chunks = append(chunks, Chunk{Text: chunkText, Index: index, StartOffset: startByte})
			index++
		}

		startChar += step

		if charCount-startChar < chunkSize/4 && len(chunks) > 0 {
			break
		}
	}

	return chunks
}

// findWordBoundary looks back up to wordBoundaryLookback runes from posChar
// for the nearest whitespace, returning the rune index immediately after it.
// Falls back to posChar (a hard cut) when no whitespace is found.
func findWordBoundary(runes []rune, posChar int) int {
	searchStart := posChar - wordBoundaryLookback
	if searchStart < 0 {
		searchStart = 0
	}

	lastWhitespace := -1
	for i := searchStart; i < posChar; i++ {
		if unicode.IsSpace(runes[i]) {
			lastWhitespace = i
		}
	}
	if lastWhitespace == -1 {
		return posChar
	}
	return lastWhitespace + 1
}
