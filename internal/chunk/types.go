// Package chunk splits preprocessed document text into bounded,
// overlapping chunks. Two strategies exist: sentence accumulation
// (default) keeps whole sentences together and overlaps consecutive
// chunks by a trailing run of sentences; size-based chunking cuts fixed
// character windows, preferring sentence boundaries near the cut point.
package chunk

import (
	"context"
	"time"

	"github.com/jcascante/brew-master-ai/internal/profile"
)

// Chunk is one retrievable unit derived from a source document.
// Chunks are ephemeral: they exist between chunking and upsert and are
// never shared across documents.
type Chunk struct {
	// Text is the chunk content.
	Text string
	// Index is the sequential position within the document, from 0.
	Index int
	// StartSentence and EndSentence are the inclusive sentence span
	// (sentence strategy only).
	StartSentence int
	EndSentence   int
	// StartOffset and EndOffset are the character window bounds
	// (size strategy only; end exclusive).
	StartOffset int
	EndOffset   int
	// Size is len(Text).
	Size int
	// CreatedAt stamps when the chunk was produced.
	CreatedAt time.Time
}

// Chunker is the interface for splitting text into chunks.
type Chunker interface {
	// Chunk splits text into ordered chunks. Index values are
	// contiguous from 0.
	Chunk(ctx context.Context, text string) ([]Chunk, error)
}

// New returns the chunking strategy for the profile: sentence
// accumulation when p.ChunkBySentences is set, fixed windows otherwise.
func New(p profile.Profile) Chunker {
	if p.ChunkBySentences {
		return NewSentenceChunker(p)
	}
	return NewSizeChunker(p)
}
