package chunk

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jcascante/brew-master-ai/internal/profile"
)

// SizeChunker cuts fixed character windows of MaxChunkSize, preferring
// to cut just after a sentence terminator found within the trailing
// OverlapSize of the window. Consecutive windows overlap by OverlapSize
// characters.
type SizeChunker struct {
	p profile.Profile
}

var _ Chunker = (*SizeChunker)(nil)

// NewSizeChunker creates a size-based chunker for the profile.
func NewSizeChunker(p profile.Profile) *SizeChunker {
	return &SizeChunker{p: p}
}

// Chunk splits text into character windows. A trailing window shorter
// than MinChunkSize is merged into the previous one by extending it to
// the end of the text.
func (c *SizeChunker) Chunk(ctx context.Context, text string) ([]Chunk, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	now := time.Now()

	if len(text) <= c.p.MaxChunkSize {
		return []Chunk{{
			Text:      text,
			Index:     0,
			EndOffset: len(text),
			Size:      len(text),
			CreatedAt: now,
		}}, nil
	}

	var chunks []Chunk
	start := 0

	for start < len(text) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := start + c.p.MaxChunkSize
		if end >= len(text) {
			end = len(text)
		} else {
			end = snapToRuneStart(text, end)
			end = cutAtSentenceEnd(text, start, end, c.p.OverlapSize)
		}

		if end == len(text) && len(text)-start < c.p.MinChunkSize && len(chunks) > 0 {
			// Too-short tail: extend the previous window to the end
			// instead of emitting a fragment.
			prev := &chunks[len(chunks)-1]
			prev.Text = strings.TrimSpace(text[prev.StartOffset:])
			prev.EndOffset = len(text)
			prev.Size = len(prev.Text)
			break
		}

		piece := strings.TrimSpace(text[start:end])
		if piece != "" {
			chunks = append(chunks, Chunk{
				Text:        piece,
				Index:       len(chunks),
				StartOffset: start,
				EndOffset:   end,
				Size:        len(piece),
				CreatedAt:   now,
			})
		}

		if end >= len(text) {
			break
		}

		next := end
		if c.p.OverlapSize > 0 {
			next = snapToRuneStart(text, end-c.p.OverlapSize)
		}
		if next <= start {
			// Guard against a stalled window when overlap is close to
			// the window size.
			next = end
		}
		start = next
	}

	return chunks, nil
}

// cutAtSentenceEnd scans backward from end, within the window's trailing
// overlap region, for the nearest sentence terminator and returns the
// position just after it. Falls back to end when none is found.
func cutAtSentenceEnd(text string, start, end, overlap int) int {
	limit := end - overlap
	if limit < start {
		limit = start
	}
	for i := end; i > limit; i-- {
		switch text[i-1] {
		case '.', '!', '?':
			return i
		}
	}
	return end
}

// snapToRuneStart moves pos forward to the nearest rune boundary so
// windows never split a multi-byte character.
func snapToRuneStart(text string, pos int) int {
	for pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos++
	}
	return pos
}
