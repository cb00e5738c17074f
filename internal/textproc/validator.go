// Package textproc implements the text quality gate and preprocessing
// pipeline applied to source documents before chunking. Validation is a
// pure check returning a verdict with a reason; preprocessing is a fixed
// sequence of normalization steps driven by profile toggles.
package textproc

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jcascante/brew-master-ai/internal/profile"
)

// Repetition thresholds by validation level. A whole document tolerates
// more repeated vocabulary than a single chunk: transcripts repeat
// speaker phrases across a long text, but a chunk that is mostly one
// phrase carries no signal.
const (
	DocumentRepetitionThreshold = 0.15
	ChunkRepetitionThreshold    = 0.30
)

// minMeaningfulWords is the minimum number of meaningful words a text
// must contain to pass validation.
const minMeaningfulWords = 5

// Bounds are the limits a text is validated against.
type Bounds struct {
	// MinLength is the minimum text length in bytes.
	MinLength int
	// MaxLength is the maximum text length in bytes. Zero disables the check.
	MaxLength int
	// RepetitionThreshold is the minimum distinct/total ratio over
	// meaningful words. Zero disables the check.
	RepetitionThreshold float64
}

// DocumentBounds returns validation bounds for a whole document under
// the given profile.
func DocumentBounds(p profile.Profile) Bounds {
	return Bounds{
		MinLength:           p.MinTextLength,
		MaxLength:           p.MaxTextLength,
		RepetitionThreshold: DocumentRepetitionThreshold,
	}
}

// ChunkBounds returns validation bounds for a single chunk under the
// given profile. Length limits match the document's; the repetition
// gate is stricter.
func ChunkBounds(p profile.Profile) Bounds {
	return Bounds{
		MinLength:           p.MinTextLength,
		MaxLength:           p.MaxTextLength,
		RepetitionThreshold: ChunkRepetitionThreshold,
	}
}

// Result is a validation verdict.
type Result struct {
	OK     bool
	Reason string
}

// valid is the verdict for text that passed every gate.
var valid = Result{OK: true, Reason: "valid"}

// Validate checks text quality against bounds. Rules apply in order and
// the first failure wins:
//
//  1. empty or whitespace-only
//  2. shorter than MinLength
//  3. longer than MaxLength
//  4. fewer than 5 meaningful words (length > 2, letters only)
//  5. distinct/total meaningful word ratio below RepetitionThreshold
//
// Validate is pure: no side effects, deterministic for a given input.
func Validate(text string, b Bounds) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Reason: "empty"}
	}

	if len(text) < b.MinLength {
		return Result{Reason: fmt.Sprintf("too short (%d chars < %d)", len(text), b.MinLength)}
	}

	if b.MaxLength > 0 && len(text) > b.MaxLength {
		return Result{Reason: fmt.Sprintf("too long (%d chars > %d)", len(text), b.MaxLength)}
	}

	meaningful := MeaningfulWords(text)
	if len(meaningful) < minMeaningfulWords {
		return Result{Reason: fmt.Sprintf("insufficient meaningful words (%d < %d)", len(meaningful), minMeaningfulWords)}
	}

	if b.RepetitionThreshold > 0 {
		distinct := make(map[string]struct{}, len(meaningful))
		for _, w := range meaningful {
			distinct[strings.ToLower(w)] = struct{}{}
		}
		ratio := float64(len(distinct)) / float64(len(meaningful))
		if ratio < b.RepetitionThreshold {
			return Result{Reason: fmt.Sprintf("too repetitive (distinct ratio %.2f < %.2f)", ratio, b.RepetitionThreshold)}
		}
	}

	return valid
}

// MeaningfulWords tokenizes text and returns the words longer than two
// characters consisting only of letters. Punctuation and digits separate
// tokens and never count as content.
func MeaningfulWords(text string) []string {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	meaningful := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) <= 2 {
			continue
		}
		letters := true
		for _, r := range tok {
			if !unicode.IsLetter(r) {
				letters = false
				break
			}
		}
		if letters {
			meaningful = append(meaningful, tok)
		}
	}
	return meaningful
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
