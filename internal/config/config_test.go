package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcascante/brew-master-ai/internal/scanner"
	"github.com/jcascante/brew-master-ai/internal/store"
)

// isolate points the user config at a fresh directory so tests never
// read the developer's real ~/.config/brewindex.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func writeProjectConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 1, cfg.Version)

	// Sources follow the corpus layout
	require.Len(t, cfg.Sources, 3)
	assert.Equal(t, "transcript", cfg.Sources[0].ContentType)
	assert.Equal(t, "ocr", cfg.Sources[1].ContentType)
	assert.Equal(t, "manual", cfg.Sources[2].ContentType)
	assert.Equal(t, "data/transcripts/from_videos", cfg.Sources[0].Path)

	// Store defaults
	assert.Equal(t, store.BackendQdrant, cfg.Store.Backend)
	assert.Equal(t, store.DefaultURL, cfg.Store.URL)
	assert.Equal(t, store.DefaultCollection, cfg.Store.Collection)

	// Embedding defaults
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)

	// Processing defaults
	assert.Equal(t, 4, cfg.Processing.Workers)
	assert.Equal(t, int64(scanner.DefaultMaxFileSize), cfg.Processing.MaxFileSize)
	assert.False(t, cfg.Processing.VerifyContent)

	// Watch defaults
	assert.Equal(t, "2s", cfg.Watch.Debounce)
	assert.Equal(t, "30s", cfg.Watch.PollInterval)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.Logging.MaxSizeMB)
	assert.Equal(t, 5, cfg.Logging.MaxFiles)
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	// Given no user and no project config
	isolate(t)
	dir := t.TempDir()

	// When loading
	cfg, err := Load(dir)

	// Then the defaults come through unchanged
	require.NoError(t, err)
	assert.Equal(t, store.DefaultCollection, cfg.Store.Collection)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, 4, cfg.Processing.Workers)
}

func TestLoad_ProjectFileOverrides(t *testing.T) {
	// Given a project brewindex.yaml overriding part of the config
	isolate(t)
	dir := t.TempDir()
	writeProjectConfig(t, dir, "brewindex.yaml", `
store:
  backend: sqlite
  path: /tmp/brew.db
processing:
  workers: 8
sources:
  - path: corpus/transcripts
    content_type: transcript
`)

	// When loading
	cfg, err := Load(dir)

	// Then overridden fields win and the rest keep defaults
	require.NoError(t, err)
	assert.Equal(t, store.BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/brew.db", cfg.Store.Path)
	assert.Equal(t, 8, cfg.Processing.Workers)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)

	// And the source list is replaced, not appended
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "corpus/transcripts", cfg.Sources[0].Path)
}

func TestLoad_YmlFallback(t *testing.T) {
	// Given only a .yml project file
	isolate(t)
	dir := t.TempDir()
	writeProjectConfig(t, dir, "brewindex.yml", "store:\n  collection: from_yml\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "from_yml", cfg.Store.Collection)
}

func TestLoad_YamlTakesPrecedenceOverYml(t *testing.T) {
	// Given both project file spellings
	isolate(t)
	dir := t.TempDir()
	writeProjectConfig(t, dir, "brewindex.yaml", "store:\n  collection: from_yaml\n")
	writeProjectConfig(t, dir, "brewindex.yml", "store:\n  collection: from_yml\n")

	cfg, err := Load(dir)

	// Then only the .yaml file is read
	require.NoError(t, err)
	assert.Equal(t, "from_yaml", cfg.Store.Collection)
}

func TestLoad_UserConfigUnderProjectConfig(t *testing.T) {
	// Given a user config and a project config touching different keys
	xdg := isolate(t)
	userDir := filepath.Join(xdg, "brewindex")
	require.NoError(t, os.MkdirAll(userDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte(`
store:
  collection: user_collection
embeddings:
  model: user-model
`), 0o644))

	dir := t.TempDir()
	writeProjectConfig(t, dir, "brewindex.yaml", "store:\n  collection: project_collection\n")

	// When loading
	cfg, err := Load(dir)

	// Then the project layer wins where both set a value, and the
	// user layer survives where it does not
	require.NoError(t, err)
	assert.Equal(t, "project_collection", cfg.Store.Collection)
	assert.Equal(t, "user-model", cfg.Embeddings.Model)
}

func TestLoad_EnvOverridesEverything(t *testing.T) {
	// Given a project config and conflicting environment variables
	isolate(t)
	dir := t.TempDir()
	writeProjectConfig(t, dir, "brewindex.yaml", "store:\n  collection: from_file\n")
	t.Setenv("BREWINDEX_STORE_COLLECTION", "from_env")
	t.Setenv("BREWINDEX_EMBED_PROVIDER", "static")
	t.Setenv("BREWINDEX_WORKERS", "12")
	t.Setenv("BREWINDEX_STORE_API_KEY", "secret-key")

	// When loading
	cfg, err := Load(dir)

	// Then the environment is the highest precedence layer
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Store.Collection)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 12, cfg.Processing.Workers)
	assert.Equal(t, "secret-key", cfg.Store.APIKey)
}

func TestLoad_BadEnvNumbersAreIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("BREWINDEX_WORKERS", "a few")
	t.Setenv("BREWINDEX_EMBED_BATCH_SIZE", "-3")

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Processing.Workers)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeProjectConfig(t, dir, "brewindex.yaml", "store: [not: a: mapping\n")

	cfg, err := Load(dir)

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "parse")
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeProjectConfig(t, dir, "brewindex.yaml", "store:\n  backend: cassandra\n")

	_, err := Load(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.backend")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown store backend",
			mutate:  func(c *Config) { c.Store.Backend = "redis" },
			wantErr: "store.backend",
		},
		{
			name: "sqlite backend requires a path",
			mutate: func(c *Config) {
				c.Store.Backend = store.BackendSQLite
				c.Store.Path = ""
			},
			wantErr: "store.path",
		},
		{
			name:    "unknown embed provider",
			mutate:  func(c *Config) { c.Embeddings.Provider = "openai" },
			wantErr: "embeddings.provider",
		},
		{
			name:    "negative batch size",
			mutate:  func(c *Config) { c.Embeddings.BatchSize = -1 },
			wantErr: "batch_size",
		},
		{
			name:    "negative workers",
			mutate:  func(c *Config) { c.Processing.Workers = -2 },
			wantErr: "workers",
		},
		{
			name:    "source without a path",
			mutate:  func(c *Config) { c.Sources = []scanner.Source{{ContentType: "manual"}} },
			wantErr: "sources[0]",
		},
		{
			name:    "unparseable debounce",
			mutate:  func(c *Config) { c.Watch.Debounce = "soon" },
			wantErr: "watch.debounce",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWatchConfig_Durations(t *testing.T) {
	w := WatchConfig{Debounce: "750ms", PollInterval: "1m"}
	assert.Equal(t, 750*time.Millisecond, w.DebounceDuration())
	assert.Equal(t, time.Minute, w.PollDuration())

	// Unset and garbage fall back to the defaults
	var zero WatchConfig
	assert.Equal(t, 2*time.Second, zero.DebounceDuration())
	assert.Equal(t, 30*time.Second, zero.PollDuration())
	bad := WatchConfig{Debounce: "soon", PollInterval: "-5s"}
	assert.Equal(t, 2*time.Second, bad.DebounceDuration())
	assert.Equal(t, 30*time.Second, bad.PollDuration())
}

func TestConfig_MergeKeepsVerifyContent(t *testing.T) {
	cfg := NewConfig()
	cfg.mergeWith(&Config{Processing: ProcessingConfig{VerifyContent: true}})
	assert.True(t, cfg.Processing.VerifyContent)

	// A later layer without the flag does not reset it
	cfg.mergeWith(&Config{})
	assert.True(t, cfg.Processing.VerifyContent)
}

func TestConfig_ExistingSources(t *testing.T) {
	// Given two configured sources, only one of which exists on disk
	base := t.TempDir()
	present := filepath.Join(base, "transcripts")
	require.NoError(t, os.MkdirAll(present, 0o755))

	cfg := NewConfig()
	cfg.Sources = []scanner.Source{
		{Path: present, ContentType: "transcript"},
		{Path: filepath.Join(base, "missing"), ContentType: "manual"},
	}

	// When filtering
	existing := cfg.ExistingSources()

	// Then only the directory that exists survives
	require.Len(t, existing, 1)
	assert.Equal(t, present, existing[0].Path)
}

func TestConfig_WriteYAMLRoundTrip(t *testing.T) {
	// Given a customized config written to disk
	path := filepath.Join(t.TempDir(), "nested", "brewindex.yaml")
	cfg := NewConfig()
	cfg.Store.Collection = "homebrew_notes"
	cfg.Processing.Workers = 6
	require.NoError(t, cfg.WriteYAML(path))

	// When reading it back over fresh defaults
	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))

	// Then the customized fields survive the round trip
	assert.Equal(t, "homebrew_notes", loaded.Store.Collection)
	assert.Equal(t, 6, loaded.Processing.Workers)
}

func TestUserConfigPath_HonorsXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := UserConfigPath()

	assert.Equal(t, filepath.Join(dir, "brewindex", "config.yaml"), path)
}
