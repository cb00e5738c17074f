// Package config loads the layered brewindex configuration: hardcoded
// defaults, then the user config under the XDG config home, then a
// project-level brewindex.yaml, then BREWINDEX_* environment variables.
// Later layers win. The merged result is validated before use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jcascante/brew-master-ai/internal/embed"
	"github.com/jcascante/brew-master-ai/internal/logging"
	"github.com/jcascante/brew-master-ai/internal/scanner"
	"github.com/jcascante/brew-master-ai/internal/store"
)

// Project config filenames, tried in order.
var projectConfigNames = []string{"brewindex.yaml", "brewindex.yml"}

// Config is the complete brewindex configuration.
type Config struct {
	Version int `yaml:"version" json:"version"`

	// Sources are the document roots to reconcile against.
	Sources []scanner.Source `yaml:"sources" json:"sources"`

	Store      store.Config `yaml:"store" json:"store"`
	Embeddings embed.Config `yaml:"embeddings" json:"embeddings"`

	Processing ProcessingConfig `yaml:"processing" json:"processing"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Logging    logging.Config   `yaml:"logging" json:"logging"`
}

// ProcessingConfig tunes the reconciliation pipeline.
type ProcessingConfig struct {
	// Workers bounds the per-file worker pool (default 4).
	Workers int `yaml:"workers" json:"workers"`

	// Profile forces one processing profile for every file. Empty
	// selects per content type.
	Profile string `yaml:"profile" json:"profile"`

	// ProfileFile points at a YAML file of profile overrides merged
	// over the built-ins.
	ProfileFile string `yaml:"profile_file" json:"profile_file"`

	// VerifyContent enables the content-hash check on otherwise
	// unchanged files.
	VerifyContent bool `yaml:"verify_content" json:"verify_content"`

	// MaxFileSize skips files larger than this many bytes (default
	// 50 MB).
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
}

// WatchConfig tunes watch mode. Durations are strings ("2s", "500ms")
// because YAML cannot express time.Duration directly.
type WatchConfig struct {
	// Debounce is the quiet period after a filesystem event before a
	// reconciliation run starts (default "2s").
	Debounce string `yaml:"debounce" json:"debounce"`

	// PollInterval is the fallback rescan interval used when inotify
	// watches cannot be established (default "30s").
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
}

// DebounceDuration parses Debounce, defaulting to 2s when unset or
// unparseable.
func (w WatchConfig) DebounceDuration() time.Duration {
	if d, err := time.ParseDuration(w.Debounce); err == nil && d >= 0 {
		return d
	}
	return 2 * time.Second
}

// PollDuration parses PollInterval, defaulting to 30s when unset or
// unparseable.
func (w WatchConfig) PollDuration() time.Duration {
	if d, err := time.ParseDuration(w.PollInterval); err == nil && d >= 0 {
		return d
	}
	return 30 * time.Second
}

// NewConfig returns the hardcoded defaults. Source paths follow the
// corpus layout: transcripts extracted from videos, OCR text pulled
// from presentations, and hand-written notes.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Sources: []scanner.Source{
			{Path: "data/transcripts/from_videos", ContentType: "transcript"},
			{Path: "data/presentation_texts", ContentType: "ocr"},
			{Path: "data/notes", ContentType: "manual"},
		},
		Store: store.Config{
			Backend:    store.BackendQdrant,
			URL:        store.DefaultURL,
			Collection: store.DefaultCollection,
		},
		Embeddings: embed.Config{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			BatchSize: 32,
		},
		Processing: ProcessingConfig{
			Workers:     4,
			MaxFileSize: scanner.DefaultMaxFileSize,
		},
		Watch: WatchConfig{
			Debounce:     "2s",
			PollInterval: "30s",
		},
		Logging: logging.Config{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// UserConfigPath returns the user-level configuration file, following
// the XDG base directory convention.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "brewindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "brewindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "brewindex", "config.yaml")
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(UserConfigPath())
}

// Load builds the effective configuration for a project directory.
// Precedence, lowest to highest: defaults, user config, project config
// (brewindex.yaml in dir), BREWINDEX_* environment variables. The
// merged result is validated.
func Load(dir string) (*Config, error) {
	return LoadWithFile(dir, "")
}

// LoadWithFile is Load with an explicit config file taking the place
// of the discovered project config. The file must exist; discovery of
// brewindex.yaml in dir is skipped entirely.
func LoadWithFile(dir, file string) (*Config, error) {
	cfg := NewConfig()

	if path := UserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("user config: %w", err)
		}
	}

	if file != "" {
		if !fileExists(file) {
			return nil, fmt.Errorf("config file not found: %s", file)
		}
		if err := cfg.loadYAML(file); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	} else {
		for _, name := range projectConfigNames {
			path := filepath.Join(dir, name)
			if !fileExists(path) {
				continue
			}
			if err := cfg.loadYAML(path); err != nil {
				return nil, fmt.Errorf("project config: %w", err)
			}
			break
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML parses a config file and merges its non-zero values.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero values from other onto c. A configured
// source list replaces the defaults outright; sources are a complete
// statement, not additions.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if len(other.Sources) > 0 {
		c.Sources = other.Sources
	}

	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.URL != "" {
		c.Store.URL = other.Store.URL
	}
	if other.Store.APIKey != "" {
		c.Store.APIKey = other.Store.APIKey
	}
	if other.Store.Collection != "" {
		c.Store.Collection = other.Store.Collection
	}
	if other.Store.Distance != "" {
		c.Store.Distance = other.Store.Distance
	}
	if other.Store.Timeout > 0 {
		c.Store.Timeout = other.Store.Timeout
	}
	if other.Store.ScrollLimit > 0 {
		c.Store.ScrollLimit = other.Store.ScrollLimit
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Endpoint != "" {
		c.Embeddings.Endpoint = other.Embeddings.Endpoint
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.Timeout > 0 {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.MaxRetries != 0 {
		c.Embeddings.MaxRetries = other.Embeddings.MaxRetries
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}
	if other.Embeddings.RateLimit != 0 {
		c.Embeddings.RateLimit = other.Embeddings.RateLimit
	}

	if other.Processing.Workers != 0 {
		c.Processing.Workers = other.Processing.Workers
	}
	if other.Processing.Profile != "" {
		c.Processing.Profile = other.Processing.Profile
	}
	if other.Processing.ProfileFile != "" {
		c.Processing.ProfileFile = other.Processing.ProfileFile
	}
	if other.Processing.VerifyContent {
		c.Processing.VerifyContent = true
	}
	if other.Processing.MaxFileSize != 0 {
		c.Processing.MaxFileSize = other.Processing.MaxFileSize
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.PollInterval != "" {
		c.Watch.PollInterval = other.Watch.PollInterval
	}

	// WriteToStderr stays CLI-owned; files cannot express "explicitly
	// false" through a zero-value merge.
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies BREWINDEX_* variables, the highest
// precedence layer. Secrets like the store API key normally arrive
// this way, via the environment or a .env file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BREWINDEX_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("BREWINDEX_STORE_URL"); v != "" {
		c.Store.URL = v
	}
	if v := os.Getenv("BREWINDEX_STORE_API_KEY"); v != "" {
		c.Store.APIKey = v
	}
	if v := os.Getenv("BREWINDEX_STORE_COLLECTION"); v != "" {
		c.Store.Collection = v
	}
	if v := os.Getenv("BREWINDEX_STORE_PATH"); v != "" {
		c.Store.Path = v
	}

	if v := os.Getenv("BREWINDEX_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("BREWINDEX_EMBED_ENDPOINT"); v != "" {
		c.Embeddings.Endpoint = v
	}
	if v := os.Getenv("BREWINDEX_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("BREWINDEX_EMBED_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embeddings.BatchSize = n
		}
	}

	if v := os.Getenv("BREWINDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Processing.Workers = n
		}
	}
	if v := os.Getenv("BREWINDEX_PROFILE"); v != "" {
		c.Processing.Profile = v
	}
	if v := os.Getenv("BREWINDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the merged configuration. It runs after every Load
// so a broken layer surfaces immediately instead of mid-run.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case "", store.BackendQdrant, store.BackendSQLite:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q",
			store.BackendQdrant, store.BackendSQLite, c.Store.Backend)
	}
	if strings.EqualFold(c.Store.Backend, store.BackendSQLite) && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the sqlite backend")
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "", "ollama", "static":
	default:
		return fmt.Errorf("embeddings.provider must be 'ollama' or 'static', got %q",
			c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize < 0 {
		return fmt.Errorf("embeddings.batch_size must be non-negative, got %d",
			c.Embeddings.BatchSize)
	}

	if c.Processing.Workers < 0 {
		return fmt.Errorf("processing.workers must be non-negative, got %d",
			c.Processing.Workers)
	}
	if c.Processing.MaxFileSize < 0 {
		return fmt.Errorf("processing.max_file_size must be non-negative, got %d",
			c.Processing.MaxFileSize)
	}

	for i, src := range c.Sources {
		if strings.TrimSpace(src.Path) == "" {
			return fmt.Errorf("sources[%d]: path is required", i)
		}
	}

	if c.Watch.Debounce != "" {
		if d, err := time.ParseDuration(c.Watch.Debounce); err != nil || d < 0 {
			return fmt.Errorf("watch.debounce must be a non-negative duration, got %q", c.Watch.Debounce)
		}
	}
	if c.Watch.PollInterval != "" {
		if d, err := time.ParseDuration(c.Watch.PollInterval); err != nil || d < 0 {
			return fmt.Errorf("watch.poll_interval must be a non-negative duration, got %q", c.Watch.PollInterval)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q",
			c.Logging.Level)
	}

	return nil
}

// ExistingSources filters the configured sources down to directories
// that are actually present. Commands that would otherwise treat a
// missing tree as "everything was deleted" refuse to run when this
// comes back empty.
func (c *Config) ExistingSources() []scanner.Source {
	var present []scanner.Source
	for _, src := range c.Sources {
		if dirExists(src.Path) {
			present = append(present, src)
		}
	}
	return present
}

// WriteYAML writes the configuration to path, creating parent
// directories as needed.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// WriteUserConfig writes cfg as the user configuration, backing up any
// existing file first. Returns the backup path, empty when there was
// nothing to back up.
func WriteUserConfig(c *Config) (string, error) {
	backup, err := BackupUserConfig()
	if err != nil {
		return "", err
	}
	if err := c.WriteYAML(UserConfigPath()); err != nil {
		return "", err
	}
	return backup, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
