package textproc

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/jcascante/brew-master-ai/internal/profile"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// specialCharRe matches anything outside letters, digits, whitespace,
	// and basic punctuation worth keeping for sentence structure.
	specialCharRe = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?;:\-()\[\]{}]`)
	// Runs of terminal or separator punctuation collapse to one mark.
	terminalRunRe  = regexp.MustCompile(`[.!?]{2,}`)
	separatorRunRe = regexp.MustCompile(`[,;:]{2,}`)
	numberRe       = regexp.MustCompile(`[0-9]+`)
)

// Preprocessor applies profile-driven text normalization.
// Every step is pure and total; steps whose resources are unavailable
// degrade to no-ops with a single logged warning.
type Preprocessor struct {
	logger *slog.Logger

	lemmaWarn sync.Once
	langWarn  sync.Once
}

// NewPreprocessor creates a preprocessor. A nil logger uses the default.
func NewPreprocessor(logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preprocessor{logger: logger}
}

// Preprocess normalizes text according to the profile's toggles, in
// fixed order: unicode normalization, whitespace collapse, special
// character stripping, punctuation run collapse, lowercasing, numeral
// stripping, punctuation stripping, stopword removal. When
// p.CleanText is false the text passes through untouched.
func (pp *Preprocessor) Preprocess(text string, p profile.Profile) string {
	if !p.CleanText {
		return text
	}

	text = strings.TrimSpace(text)

	if p.NormalizeUnicode {
		text = norm.NFKC.String(text)
	}

	text = whitespaceRe.ReplaceAllString(text, " ")

	if p.RemoveSpecialChars {
		text = specialCharRe.ReplaceAllString(text, "")
	}

	text = terminalRunRe.ReplaceAllString(text, ".")
	text = separatorRunRe.ReplaceAllString(text, ",")

	if p.Lowercase {
		text = strings.ToLower(text)
	}

	if p.RemoveNumbers {
		text = numberRe.ReplaceAllString(text, "")
		text = whitespaceRe.ReplaceAllString(text, " ")
	}

	if p.RemovePunctuation {
		text = strings.Map(func(r rune) rune {
			if unicode.IsPunct(r) {
				return -1
			}
			return r
		}, text)
		text = whitespaceRe.ReplaceAllString(text, " ")
	}

	if p.RemoveStopwords {
		text = pp.removeStopwords(text, p.Language)
	}

	if p.Lemmatize {
		// No lemmatizer is bundled; the step degrades to a no-op.
		pp.lemmaWarn.Do(func() {
			pp.logger.Warn("lemmatization requested but no lemmatizer is available, skipping",
				slog.String("profile", p.Name))
		})
	}

	return strings.TrimSpace(text)
}

// removeStopwords filters stopwords for the given language. Unknown
// languages skip the step with a warning rather than failing.
func (pp *Preprocessor) removeStopwords(text, language string) string {
	stopwords, ok := stopwordSets[normalizeLanguage(language)]
	if !ok {
		pp.langWarn.Do(func() {
			pp.logger.Warn("no stopword list for language, skipping stopword removal",
				slog.String("language", language))
		})
		return text
	}

	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopwords[strings.ToLower(strings.Trim(w, ".,!?;:()[]{}"))]; !stop {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// normalizeLanguage maps language aliases to stopword set keys.
func normalizeLanguage(language string) string {
	switch strings.ToLower(language) {
	case "", "en", "eng", "english":
		return "english"
	default:
		return strings.ToLower(language)
	}
}
