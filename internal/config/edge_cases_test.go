package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyProjectFile_KeepsDefaults(t *testing.T) {
	// Given an empty brewindex.yaml
	isolate(t)
	dir := t.TempDir()
	writeProjectConfig(t, dir, "brewindex.yaml", "")

	// When loading
	cfg, err := Load(dir)

	// Then nothing is overridden
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Len(t, cfg.Sources, 3)
}

func TestLoad_UnknownKeysIgnored(t *testing.T) {
	// Given a config with keys this version does not know
	isolate(t)
	dir := t.TempDir()
	writeProjectConfig(t, dir, "brewindex.yaml", `
store:
  collection: tasting_notes
fermentation:
  temperature: 19
`)

	// When loading
	cfg, err := Load(dir)

	// Then the unknown section is skipped, not an error
	require.NoError(t, err)
	assert.Equal(t, "tasting_notes", cfg.Store.Collection)
}

func TestLoad_PartialSectionKeepsSiblingDefaults(t *testing.T) {
	// Given a config setting a single store field
	isolate(t)
	dir := t.TempDir()
	writeProjectConfig(t, dir, "brewindex.yaml", "store:\n  collection: only_this\n")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "only_this", cfg.Store.Collection)
	assert.Equal(t, "http://localhost:6333", cfg.Store.URL)
	assert.Equal(t, "qdrant", cfg.Store.Backend)
}

func TestLoad_WrongFieldTypeFails(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeProjectConfig(t, dir, "brewindex.yaml", "processing:\n  workers: \"many\"\n")

	_, err := Load(dir)

	require.Error(t, err)
}

func TestLoad_UnreadableProjectFileFails(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}

	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "brewindex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))
	require.NoError(t, os.Chmod(path, 0o000))
	t.Cleanup(func() { _ = os.Chmod(path, 0o644) })

	_, err := Load(dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read")
}

func TestLoad_ZeroValuesNotMerged(t *testing.T) {
	// Given explicit zeros in the project file
	isolate(t)
	dir := t.TempDir()
	writeProjectConfig(t, dir, "brewindex.yaml", `
processing:
  workers: 0
embeddings:
  batch_size: 0
`)

	// When loading
	cfg, err := Load(dir)

	// Then zeros read as "not set" and the defaults stand
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Processing.Workers)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
}

func TestConfig_JSONRoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Store.Collection = "brew_notes"

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "brew_notes", decoded.Store.Collection)
	assert.Equal(t, cfg.Processing.Workers, decoded.Processing.Workers)
}

func TestExistingSources_AllMissing(t *testing.T) {
	cfg := NewConfig()
	cfg.Sources[0].Path = filepath.Join(t.TempDir(), "nope")
	cfg.Sources[1].Path = filepath.Join(t.TempDir(), "nope")
	cfg.Sources[2].Path = filepath.Join(t.TempDir(), "nope")

	assert.Empty(t, cfg.ExistingSources())
}

func TestExistingSources_FileIsNotADirectory(t *testing.T) {
	// Given a source path that exists but is a plain file
	base := t.TempDir()
	file := filepath.Join(base, "transcripts")
	require.NoError(t, os.WriteFile(file, []byte("not a dir"), 0o644))

	cfg := NewConfig()
	cfg.Sources = cfg.Sources[:1]
	cfg.Sources[0].Path = file

	assert.Empty(t, cfg.ExistingSources())
}
