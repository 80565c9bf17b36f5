// Package document implements the ingestion side of the knowledge base:
// splitting raw files into overlapping chunks, extracting format-specific
// metadata, embedding the chunks, and maintaining the logical-document
// catalog over the vector store.
package document

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultDelimiter splits text into lines before chunk accumulation.
const DefaultDelimiter = "\n"

// ErrInvalidChunkSettings indicates inconsistent chunk settings.
var ErrInvalidChunkSettings = errors.New("invalid chunk settings")

// ChunkSettings controls how raw text is split into chunks.
type ChunkSettings struct {
	// MaxChunkLength is the chunk size budget in bytes.
	MaxChunkLength int `json:"maxChunkLength"`

	// ChunkOverlap is the number of trailing bytes of each chunk
	// prepended to its successor. Must be smaller than MaxChunkLength.
	ChunkOverlap int `json:"chunkOverlap"`

	// Delimiter separates the atomic pieces of the input. Empty means
	// DefaultDelimiter.
	Delimiter string `json:"delimiter,omitempty"`

	// HardSplit forces pieces longer than MaxChunkLength to be cut at the
	// budget. When false (the default), an oversized piece becomes an
	// oversized chunk: atomic pieces are never broken apart.
	HardSplit bool `json:"hardSplit,omitempty"`
}

// Validate checks the settings for consistency.
func (s ChunkSettings) Validate() error {
	if s.MaxChunkLength < 1 {
		return fmt.Errorf("%w: maxChunkLength must be positive, got %d", ErrInvalidChunkSettings, s.MaxChunkLength)
	}
	if s.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunkOverlap must not be negative, got %d", ErrInvalidChunkSettings, s.ChunkOverlap)
	}
	if s.ChunkOverlap >= s.MaxChunkLength {
		return fmt.Errorf("%w: chunkOverlap %d must be smaller than maxChunkLength %d",
			ErrInvalidChunkSettings, s.ChunkOverlap, s.MaxChunkLength)
	}
	return nil
}

// Chunk splits text into chunks of at most MaxChunkLength bytes.
//
// The text is split by the delimiter and delimiter-separated pieces are
// greedily accumulated; when the next piece would exceed the budget the
// running buffer is closed and a new one starts with that piece. With the
// default newline delimiter pieces are rejoined with "\n"; a custom
// delimiter is appended as a trailing suffix to every piece, the final
// one included, and finalized chunks are trimmed of trailing whitespace.
//
// A piece that alone exceeds the budget is NOT split further unless
// HardSplit is set; it becomes an oversized chunk.
//
// If ChunkOverlap > 0 and more than one chunk resulted, every chunk after
// the first is prefixed with the last ChunkOverlap bytes of its
// pre-overlap predecessor. Overlap never cascades across neighbors.
//
// Empty input yields zero chunks. Callers validate settings beforehand;
// Chunk itself treats a non-positive budget as "one piece per chunk".
func Chunk(text string, settings ChunkSettings) []string {
	if text == "" {
		return nil
	}

	delimiter := settings.Delimiter
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}

	pieces := strings.Split(text, delimiter)
	if settings.HardSplit && settings.MaxChunkLength > 0 {
		pieces = hardSplitPieces(pieces, settings.MaxChunkLength)
	}

	var chunks []string
	if delimiter == DefaultDelimiter {
		chunks = accumulateLines(pieces, settings.MaxChunkLength)
	} else {
		chunks = accumulateDelimited(pieces, delimiter, settings.MaxChunkLength)
	}

	if settings.ChunkOverlap > 0 && len(chunks) > 1 {
		chunks = applyOverlap(chunks, settings.ChunkOverlap)
	}
	return chunks
}

// accumulateLines greedily packs newline-separated pieces, rejoining with
// "\n".
func accumulateLines(pieces []string, maxLen int) []string {
	var chunks []string
	var buf strings.Builder

	for _, piece := range pieces {
		if buf.Len() == 0 {
			buf.WriteString(piece)
			continue
		}
		if maxLen > 0 && buf.Len()+1+len(piece) > maxLen {
			chunks = append(chunks, buf.String())
			buf.Reset()
			buf.WriteString(piece)
			continue
		}
		buf.WriteString("\n")
		buf.WriteString(piece)
	}

	if buf.Len() > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}

// accumulateDelimited greedily packs pieces for a custom delimiter. Every
// piece, the last included, gets the delimiter as a trailing suffix
// before the length check; finalized chunks are trimmed of trailing
// whitespace, which removes the suffix only when the delimiter itself is
// whitespace.
func accumulateDelimited(pieces []string, delimiter string, maxLen int) []string {
	var chunks []string
	var buf strings.Builder

	flush := func() {
		chunk := strings.TrimRight(buf.String(), " \t\r\n")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		buf.Reset()
	}

	for _, piece := range pieces {
		piece += delimiter
		if buf.Len() > 0 && maxLen > 0 && buf.Len()+len(piece) > maxLen {
			flush()
		}
		buf.WriteString(piece)
	}
	flush()
	return chunks
}

// applyOverlap prefixes each chunk after the first with the tail of its
// pre-overlap predecessor.
func applyOverlap(chunks []string, overlap int) []string {
	result := make([]string, len(chunks))
	result[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		tail := prev
		if len(prev) > overlap {
			tail = prev[len(prev)-overlap:]
		}
		result[i] = tail + chunks[i]
	}
	return result
}

// hardSplitPieces cuts every piece longer than maxLen into maxLen-sized
// segments.
func hardSplitPieces(pieces []string, maxLen int) []string {
	out := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		for len(piece) > maxLen {
			out = append(out, piece[:maxLen])
			piece = piece[maxLen:]
		}
		out = append(out, piece)
	}
	return out
}
