package chunk

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/jcascante/brew-master-ai/internal/profile"
)

// SentenceChunker accumulates whole sentences into chunks bounded by
// MaxChunkSize and MaxSentencesPerChunk, seeding each new chunk with an
// overlap tail of whole sentences from the previous one.
type SentenceChunker struct {
	p profile.Profile
}

var _ Chunker = (*SentenceChunker)(nil)

// NewSentenceChunker creates a sentence-based chunker for the profile.
func NewSentenceChunker(p profile.Profile) *SentenceChunker {
	return &SentenceChunker{p: p}
}

// Chunk splits text into sentence-aligned chunks.
//
// A chunk closes when appending the next sentence would push the joined
// length over MaxChunkSize, or when it holds MaxSentencesPerChunk
// sentences. A closed buffer shorter than MinChunkSize is merged into
// the previously emitted chunk instead of being dropped. After each
// close the next buffer is seeded with the longest run of trailing
// whole sentences whose cumulative length fits OverlapSize.
//
// A document whose entire text is shorter than MinChunkSize yields
// exactly one chunk.
func (c *SentenceChunker) Chunk(ctx context.Context, text string) ([]Chunk, error) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}
	now := time.Now()

	whole := strings.Join(sentences, " ")
	if len(whole) < c.p.MinChunkSize {
		return []Chunk{{
			Text:          whole,
			Index:         0,
			StartSentence: 0,
			EndSentence:   len(sentences) - 1,
			Size:          len(whole),
			CreatedAt:     now,
		}}, nil
	}

	var chunks []Chunk
	var buf []string
	bufLen := 0 // joined length of buf with single spaces
	start := 0  // sentence index of buf[0]
	seed := 0   // overlap sentences at the head of buf

	for i, s := range sentences {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if len(buf) > 0 && bufLen+1+len(s) > c.p.MaxChunkSize {
			c.close(&chunks, buf, seed, start, i-1, now)
			buf, bufLen = overlapTail(buf, c.p.OverlapSize)
			seed = len(buf)
			start = i - seed
		}

		if len(buf) == 0 {
			bufLen = len(s)
		} else {
			bufLen += 1 + len(s)
		}
		buf = append(buf, s)

		if c.p.MaxSentencesPerChunk > 0 && len(buf) >= c.p.MaxSentencesPerChunk {
			c.close(&chunks, buf, seed, start, i, now)
			buf, bufLen = overlapTail(buf, c.p.OverlapSize)
			seed = len(buf)
			start = i + 1 - seed
		}
	}

	// Trailing buffer: only close if it holds sentences beyond the seed,
	// otherwise its content is already covered by the previous chunk.
	if len(buf) > seed {
		c.close(&chunks, buf, seed, start, len(sentences)-1, now)
	}

	return chunks, nil
}

// close emits buf as a chunk, or merges its fresh sentences into the
// previous chunk when the joined text falls short of MinChunkSize.
// The seed prefix is never merged: it already lives in the previous
// chunk's text.
func (c *SentenceChunker) close(chunks *[]Chunk, buf []string, seed, start, end int, now time.Time) {
	joined := strings.Join(buf, " ")
	if len(joined) >= c.p.MinChunkSize || len(*chunks) == 0 {
		*chunks = append(*chunks, Chunk{
			Text:          joined,
			Index:         len(*chunks),
			StartSentence: start,
			EndSentence:   end,
			Size:          len(joined),
			CreatedAt:     now,
		})
		return
	}

	fresh := strings.Join(buf[seed:], " ")
	if fresh == "" {
		return
	}
	prev := &(*chunks)[len(*chunks)-1]
	prev.Text += " " + fresh
	prev.EndSentence = end
	prev.Size = len(prev.Text)
}

// overlapTail walks backward through buf accumulating whole sentences
// while their cumulative length stays within overlapSize. The tail is
// always a proper suffix: at least one sentence of buf is left out so
// consecutive chunks can never be identical.
func overlapTail(buf []string, overlapSize int) ([]string, int) {
	if overlapSize <= 0 || len(buf) < 2 {
		return nil, 0
	}

	total := 0
	count := 0
	for i := len(buf) - 1; i > 0; i-- {
		if total+len(buf[i]) > overlapSize {
			break
		}
		total += len(buf[i])
		count++
	}
	if count == 0 {
		return nil, 0
	}

	tail := make([]string, count)
	copy(tail, buf[len(buf)-count:])

	joined := total + count - 1 // single spaces between sentences
	return tail, joined
}

// sentenceClosers are characters that may trail a sentence terminator
// before the sentence actually ends, like a quote or bracket.
const sentenceClosers = `"')]}` + "”’"

// SplitSentences splits text into an ordered sentence sequence. A
// sentence ends at a run of terminal punctuation (.!?), optionally
// followed by closing quotes or brackets, when the next character is
// whitespace or the end of input. Terminators stay attached to their
// sentence. Periods inside numbers do not split.
func SplitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		b.WriteRune(r)

		if r != '.' && r != '!' && r != '?' {
			continue
		}

		j := i + 1
		for j < len(runes) && strings.ContainsRune(sentenceClosers, runes[j]) {
			b.WriteRune(runes[j])
			j++
		}
		if j < len(runes) && !unicode.IsSpace(runes[j]) {
			// Mid-token terminator, e.g. the dot in "3.5" or "v1.0"
			i = j - 1
			continue
		}

		if s := strings.TrimSpace(b.String()); s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
		i = j - 1
	}

	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
