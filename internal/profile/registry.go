package profile

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
)

// Registry holds the resolved profile table and the content-type →
// profile-name selection map. Construct once, then treat as read-only.
type Registry struct {
	profiles     map[string]Profile
	contentTypes map[string]string
	logger       *slog.Logger
}

// Option configures registry construction.
type Option func(*Registry) error

// WithLogger sets the logger used for degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) error {
		r.logger = logger
		return nil
	}
}

// WithProfile registers or replaces a single profile.
// Validity is checked once all options have applied.
func WithProfile(p Profile) Option {
	return func(r *Registry) error {
		r.profiles[p.Name] = p
		return nil
	}
}

// WithContentTypeMap merges entries over the built-in selection map.
func WithContentTypeMap(m map[string]string) Option {
	return func(r *Registry) error {
		for contentType, name := range m {
			r.contentTypes[contentType] = name
		}
		return nil
	}
}

// WithProfileFile loads YAML overrides from path. Entries merge field by
// field over the built-in of the same name; new names start from the
// built-in toggle defaults. Schema:
//
//	profiles:
//	  general_brewing:
//	    max_chunk_size: 1200
//	content_types:
//	  transcript: technical_brewing
func WithProfileFile(path string) Option {
	return func(r *Registry) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return brewerrors.New(brewerrors.ErrCodeConfigNotFound,
				fmt.Sprintf("cannot read profile file %s", path), err)
		}

		var file struct {
			Profiles     map[string]yaml.Node `yaml:"profiles"`
			ContentTypes map[string]string    `yaml:"content_types"`
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return brewerrors.New(brewerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("invalid profile file %s", path), err)
		}

		for name, node := range file.Profiles {
			merged, ok := r.profiles[name]
			if !ok {
				merged = baseProfile(name)
			}
			if err := node.Decode(&merged); err != nil {
				return brewerrors.New(brewerrors.ErrCodeConfigInvalid,
					fmt.Sprintf("invalid profile %q in %s", name, path), err)
			}
			merged.Name = name
			r.profiles[name] = merged
		}
		for contentType, name := range file.ContentTypes {
			r.contentTypes[contentType] = name
		}
		return nil
	}
}

// NewRegistry builds a registry from the built-in table plus options.
// Options apply in order, so later overrides win.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{
		profiles:     builtins(),
		contentTypes: defaultContentTypeMap(),
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	for name, p := range r.profiles {
		if err := validateProfile(p); err != nil {
			return nil, brewerrors.New(brewerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("profile %q is invalid", name), err)
		}
	}
	if _, ok := r.profiles[DefaultName]; !ok {
		return nil, brewerrors.New(brewerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("default profile %q missing from registry", DefaultName), nil)
	}

	return r, nil
}

// Select maps a content type (plus optional manual override) to a profile
// name. Manual override wins unconditionally; an unmapped content type
// falls back to the default. Pure and total: never fails.
func (r *Registry) Select(contentType, manualOverride string) string {
	if manualOverride != "" {
		return manualOverride
	}
	if name, ok := r.contentTypes[contentType]; ok {
		return name
	}
	return DefaultName
}

// Resolve returns the profile for name. Unknown names degrade to the
// default profile with a logged warning rather than failing.
func (r *Registry) Resolve(name string) Profile {
	if p, ok := r.profiles[name]; ok {
		return p
	}
	r.logger.Warn("unknown profile, using default",
		slog.String("profile", name),
		slog.String("default", DefaultName))
	return r.profiles[DefaultName]
}

// Known reports whether name is registered.
func (r *Registry) Known(name string) bool {
	_, ok := r.profiles[name]
	return ok
}

// Default returns the default profile.
func (r *Registry) Default() Profile {
	return r.profiles[DefaultName]
}

// Names returns all registered profile names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profiles returns all registered profiles sorted by name.
func (r *Registry) Profiles() []Profile {
	profiles := make([]Profile, 0, len(r.profiles))
	for _, name := range r.Names() {
		profiles = append(profiles, r.profiles[name])
	}
	return profiles
}

// ContentTypes returns a copy of the selection map.
func (r *Registry) ContentTypes() map[string]string {
	m := make(map[string]string, len(r.contentTypes))
	for contentType, name := range r.contentTypes {
		m[contentType] = name
	}
	return m
}

// validateProfile checks that a profile's parameters are internally
// consistent before it can be selected.
func validateProfile(p Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name is empty")
	}
	if p.MaxChunkSize <= 0 {
		return fmt.Errorf("max_chunk_size must be positive, got %d", p.MaxChunkSize)
	}
	if p.MinChunkSize <= 0 {
		return fmt.Errorf("min_chunk_size must be positive, got %d", p.MinChunkSize)
	}
	if p.MinChunkSize > p.MaxChunkSize {
		return fmt.Errorf("min_chunk_size %d exceeds max_chunk_size %d", p.MinChunkSize, p.MaxChunkSize)
	}
	if p.OverlapSize < 0 {
		return fmt.Errorf("overlap_size must be non-negative, got %d", p.OverlapSize)
	}
	if p.OverlapSize >= p.MaxChunkSize {
		return fmt.Errorf("overlap_size %d must be smaller than max_chunk_size %d", p.OverlapSize, p.MaxChunkSize)
	}
	if p.ChunkBySentences && p.MaxSentencesPerChunk <= 0 {
		return fmt.Errorf("max_sentences_per_chunk must be positive, got %d", p.MaxSentencesPerChunk)
	}
	if p.MinTextLength < 0 || p.MaxTextLength < 0 {
		return fmt.Errorf("text length bounds must be non-negative")
	}
	if p.MaxTextLength > 0 && p.MinTextLength > p.MaxTextLength {
		return fmt.Errorf("min_text_length %d exceeds max_text_length %d", p.MinTextLength, p.MaxTextLength)
	}
	return nil
}
