// Package profile defines processing profiles and the registry that
// selects them. A profile bundles the chunking, preprocessing, and
// validation parameters applied to one source document. Profiles are
// immutable after registry construction; selection is pure and always
// resolves to a usable profile.
package profile

// Profile is a named bundle of processing parameters.
// Values are resolved once at registry construction and never mutated.
type Profile struct {
	Name string `yaml:"name" json:"name"`

	// Chunking parameters.
	MaxChunkSize         int  `yaml:"max_chunk_size" json:"max_chunk_size"`
	MinChunkSize         int  `yaml:"min_chunk_size" json:"min_chunk_size"`
	OverlapSize          int  `yaml:"overlap_size" json:"overlap_size"`
	ChunkBySentences     bool `yaml:"chunk_by_sentences" json:"chunk_by_sentences"`
	PreserveParagraphs   bool `yaml:"preserve_paragraphs" json:"preserve_paragraphs"`
	MaxSentencesPerChunk int  `yaml:"max_sentences_per_chunk" json:"max_sentences_per_chunk"`

	// Preprocessing toggles, applied in fixed order by textproc.Preprocess.
	CleanText          bool   `yaml:"clean_text" json:"clean_text"`
	NormalizeUnicode   bool   `yaml:"normalize_unicode" json:"normalize_unicode"`
	RemoveSpecialChars bool   `yaml:"remove_special_chars" json:"remove_special_chars"`
	Lowercase          bool   `yaml:"lowercase" json:"lowercase"`
	RemoveNumbers      bool   `yaml:"remove_numbers" json:"remove_numbers"`
	RemovePunctuation  bool   `yaml:"remove_punctuation" json:"remove_punctuation"`
	RemoveStopwords    bool   `yaml:"remove_stopwords" json:"remove_stopwords"`
	Lemmatize          bool   `yaml:"lemmatize" json:"lemmatize"`
	Language           string `yaml:"language" json:"language"`

	// Validation bounds.
	MinTextLength int `yaml:"min_text_length" json:"min_text_length"`
	MaxTextLength int `yaml:"max_text_length" json:"max_text_length"`
}

// DefaultName is the profile used when no mapping or override applies.
const DefaultName = "general_brewing"

// baseProfile returns the common toggle defaults shared by all built-ins.
func baseProfile(name string) Profile {
	return Profile{
		Name:               name,
		ChunkBySentences:   true,
		PreserveParagraphs: true,
		CleanText:          true,
		NormalizeUnicode:   true,
		RemoveSpecialChars: true,
		Language:           "english",
	}
}

// contentProfile builds a built-in content-type profile from its
// size parameters. Toggles follow baseProfile.
func contentProfile(name string, maxChunk, minChunk, overlap, maxSents, minText, maxText int) Profile {
	p := baseProfile(name)
	p.MaxChunkSize = maxChunk
	p.MinChunkSize = minChunk
	p.OverlapSize = overlap
	p.MaxSentencesPerChunk = maxSents
	p.MinTextLength = minText
	p.MaxTextLength = maxText
	return p
}

// builtins returns the built-in profile table.
// Content profiles tune chunk geometry per content type: transcripts get
// wide chunks with high overlap to preserve spoken context, slide text
// gets narrow focused chunks, recipes stay near-whole.
func builtins() map[string]Profile {
	profiles := []Profile{
		contentProfile("video_transcript", 1500, 200, 300, 15, 100, 15000),
		contentProfile("presentation_text", 800, 150, 150, 8, 75, 8000),
		contentProfile("technical_brewing", 1200, 200, 250, 12, 100, 12000),
		contentProfile("general_brewing", 1000, 150, 200, 10, 75, 10000),
		contentProfile("recipe_content", 2000, 300, 400, 20, 150, 20000),
		contentProfile("faq_content", 600, 100, 100, 6, 50, 5000),
		contentProfile("historical_content", 1800, 250, 350, 18, 125, 18000),
		contentProfile("equipment_specs", 1000, 200, 200, 10, 100, 10000),

		// Quality presets: named variants selectable via manual override.
		contentProfile("high_quality", 1200, 200, 250, 12, 100, 12000),
		contentProfile("balanced", 1000, 150, 200, 10, 75, 10000),
	}

	// fast_processing trades boundary quality for speed: character
	// windows instead of sentence accumulation, stopwords stripped.
	fast := contentProfile("fast_processing", 800, 100, 100, 8, 50, 8000)
	fast.ChunkBySentences = false
	fast.PreserveParagraphs = false
	fast.RemoveStopwords = true
	profiles = append(profiles, fast)

	table := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		table[p.Name] = p
	}
	return table
}

// defaultContentTypeMap returns the built-in content-type → profile map.
func defaultContentTypeMap() map[string]string {
	return map[string]string{
		"transcript": "video_transcript",
		"ocr":        "presentation_text",
		"manual":     "general_brewing",
	}
}
