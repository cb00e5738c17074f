// Package enrich computes the metadata stored alongside every chunk:
// file facts, content statistics, a content hash, and keyword analysis
// over a configurable brewing taxonomy.
package enrich

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/jcascante/brew-master-ai/internal/chunk"
	"github.com/jcascante/brew-master-ai/internal/scanner"
	"github.com/jcascante/brew-master-ai/internal/textproc"
)

// Taxonomy maps a category name to the keywords that count toward it.
// Matching is exact against lowercased tokens. A keyword should appear
// in exactly one category; if it appears in several, the lexicographically
// last category wins.
type Taxonomy map[string][]string

// BrewingTaxonomy returns the built-in keyword taxonomy.
func BrewingTaxonomy() Taxonomy {
	return Taxonomy{
		"styles":  {"beer", "lager", "ale", "stout", "ipa", "pilsner"},
		"process": {"brew", "brewing", "fermentation", "wort", "mash", "boil"},
		"grains":  {"malt", "barley", "wheat", "rye", "oats"},
		"hops":    {"hops", "cascade", "citra", "mosaic"},
		"yeast":   {"yeast"},
	}
}

// contentTypeLabels maps source content types to the labels stored in
// payloads.
var contentTypeLabels = map[string]string{
	"transcript": "video_transcript",
	"ocr":        "presentation_text",
	"manual":     "manual_text",
}

// ContentTypeLabel maps a source content type to its stored label.
// Unrecognized types are labeled "unknown" rather than rejected.
func ContentTypeLabel(contentType string) string {
	if label, ok := contentTypeLabels[contentType]; ok {
		return label
	}
	return "unknown"
}

// ContentHash returns the hex sha256 of text. The hash identifies
// document content in payloads, keys the embedding cache, and backs
// content verification.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Metadata is the document-level enrichment result. All fields derive
// from the document snapshot and its preprocessed text, so enriching
// the same inputs always yields the same values except ProcessedAt.
type Metadata struct {
	SourceFile        string
	SourceIdentity    string
	SourcePath        string
	ContentType       string
	FileSize          int64
	FileModified      string
	TextLength        int
	WordCount         int
	SentenceCount     int
	ContentHash       string
	KeywordHits       map[string]int
	KeywordsTotal     int
	KeywordDensity    float64
	AvgSentenceLength float64
	ProcessedAt       string
}

// Payload flattens the metadata into the document-level portion of a
// stored payload. Keyword categories become keywords_<category> keys so
// they stay filterable.
func (m Metadata) Payload() map[string]any {
	p := map[string]any{
		"source_file":         m.SourceFile,
		"source_identity":     m.SourceIdentity,
		"source_path":         m.SourcePath,
		"content_type":        m.ContentType,
		"file_size":           m.FileSize,
		"file_modified":       m.FileModified,
		"text_length":         m.TextLength,
		"word_count":          m.WordCount,
		"sentence_count":      m.SentenceCount,
		"content_hash":        m.ContentHash,
		"keywords_total":      m.KeywordsTotal,
		"keyword_density":     m.KeywordDensity,
		"avg_sentence_length": m.AvgSentenceLength,
		"processed_at":        m.ProcessedAt,
	}
	for category, hits := range m.KeywordHits {
		p["keywords_"+category] = hits
	}
	return p
}

// Enricher analyzes preprocessed document text against a taxonomy.
type Enricher struct {
	keywordCategory map[string]string
	categories      []string
	now             func() time.Time
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithTaxonomy replaces the built-in brewing taxonomy.
func WithTaxonomy(t Taxonomy) Option {
	return func(e *Enricher) {
		if len(t) > 0 {
			e.setTaxonomy(t)
		}
	}
}

// New creates an Enricher with the brewing taxonomy unless overridden.
func New(opts ...Option) *Enricher {
	e := &Enricher{now: time.Now}
	e.setTaxonomy(BrewingTaxonomy())
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Enricher) setTaxonomy(t Taxonomy) {
	e.categories = make([]string, 0, len(t))
	for category := range t {
		e.categories = append(e.categories, category)
	}
	sort.Strings(e.categories)

	e.keywordCategory = make(map[string]string)
	for _, category := range e.categories {
		for _, keyword := range t[category] {
			e.keywordCategory[strings.ToLower(keyword)] = category
		}
	}
}

// Enrich computes metadata for a document and its preprocessed text.
// The document is not re-read from disk; size and mtime come from the
// scan snapshot.
func (e *Enricher) Enrich(doc scanner.Document, preprocessed string) Metadata {
	hits := make(map[string]int, len(e.categories))
	for _, category := range e.categories {
		hits[category] = 0
	}

	total := 0
	for _, token := range tokenize(preprocessed) {
		if category, ok := e.keywordCategory[token]; ok {
			hits[category]++
			total++
		}
	}

	wordCount := textproc.WordCount(preprocessed)
	sentenceCount := len(chunk.SplitSentences(preprocessed))

	return Metadata{
		SourceFile:        doc.Name,
		SourceIdentity:    doc.Identity,
		SourcePath:        doc.Path,
		ContentType:       ContentTypeLabel(doc.ContentType),
		FileSize:          doc.Size,
		FileModified:      doc.ModTime.UTC().Format(time.RFC3339),
		TextLength:        len(preprocessed),
		WordCount:         wordCount,
		SentenceCount:     sentenceCount,
		ContentHash:       ContentHash(preprocessed),
		KeywordHits:       hits,
		KeywordsTotal:     total,
		KeywordDensity:    float64(total) / float64(max(wordCount, 1)),
		AvgSentenceLength: float64(wordCount) / float64(max(sentenceCount, 1)),
		ProcessedAt:       e.now().UTC().Format(time.RFC3339),
	}
}

// ChunkPayload merges document metadata with per-chunk fields into the
// payload stored alongside the chunk vector.
func ChunkPayload(meta Metadata, c chunk.Chunk, profileName string) map[string]any {
	p := meta.Payload()
	p["text"] = c.Text
	p["chunk_index"] = c.Index
	p["profile_used"] = profileName
	p["chunk_text_length"] = len(c.Text)
	p["chunk_word_count"] = textproc.WordCount(c.Text)
	return p
}

// tokenize lowercases text and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
