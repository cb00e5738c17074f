package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcascante/brew-master-ai/internal/reconcile"
)

const hopNotes = `Hop additions shape both bitterness and aroma, and the timing matters
more than the amount. Additions at the start of the boil isomerize
fully and give clean bitterness, while anything added in the last ten
minutes keeps its volatile oils and shows up as flavor. For this pale
ale we use a clean bittering charge at sixty minutes, a flavor
addition at ten, and a generous whirlpool charge once the kettle drops
below eighty degrees. Dry hopping happens on day four of fermentation,
when the yeast is still active enough to scrub oxygen. Keep the dry
hop contact time under five days, because longer contact pulls grassy
notes out of the vegetal material and into the finished beer.`

// newReconcileProject builds a project wired for offline runs: sqlite
// store in the project directory and the static embedding provider.
func newReconcileProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	configYAML := `version: 1
sources:
  - path: docs
    content_type: transcript
store:
  backend: sqlite
  path: index.db
  collection: brewing_test
embeddings:
  provider: static
processing:
  workers: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brewindex.yaml"), []byte(configYAML), 0o644))

	docsDir := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docsDir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(docsDir, name), []byte(content), 0o644))
	}

	return dir
}

// runCLI executes one brewindex invocation against a fresh command
// tree and returns the captured output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// reconcileSummary runs reconcile (or cleanup) with --json and decodes
// the printed summary.
func reconcileSummary(t *testing.T, args ...string) *reconcile.Summary {
	t.Helper()
	out, err := runCLI(t, args...)
	require.NoError(t, err, "run should succeed, output:\n%s", out)

	summary := new(reconcile.Summary)
	require.NoError(t, json.Unmarshal([]byte(out), summary), "stdout should be the JSON summary:\n%s", out)
	return summary
}

func TestReconcile_EndToEnd(t *testing.T) {
	// Given: a fresh project with two transcripts
	isolateUserConfig(t)
	dir := newReconcileProject(t, map[string]string{
		"brew-day.txt": goodTranscript,
		"hops.txt":     hopNotes,
	})

	// When: reconciling the first time
	first := reconcileSummary(t, "reconcile", "--json", dir)

	// Then: both files are processed and their chunks stored
	assert.False(t, first.DryRun)
	assert.Equal(t, 2, first.FilesProcessed, "both files are new")
	assert.Equal(t, 0, first.FilesSkipped)
	assert.Equal(t, 0, first.FilesFailed)
	assert.GreaterOrEqual(t, first.ChunksCreated, 2, "each file yields at least one chunk")
	assert.Empty(t, first.Errors)

	// When: reconciling again without changes
	second := reconcileSummary(t, "reconcile", "--json", dir)

	// Then: everything is skipped
	assert.Equal(t, 2, second.FilesSkipped, "unchanged files are skipped")
	assert.Equal(t, 0, second.FilesProcessed)
	assert.Equal(t, 0, second.ChunksCreated)

	// When: one source file is deleted and the run repeats
	require.NoError(t, os.Remove(filepath.Join(dir, "docs", "hops.txt")))
	third := reconcileSummary(t, "reconcile", "--json", dir)

	// Then: its records are orphan-deleted and the survivor skipped
	assert.Equal(t, 1, third.FilesOrphaned, "deleted file becomes an orphan")
	assert.GreaterOrEqual(t, third.ChunksDeleted, 1)
	assert.Equal(t, 1, third.FilesSkipped)
	assert.Equal(t, 0, third.FilesProcessed)
}

func TestReconcile_DryRunWritesNothing(t *testing.T) {
	// Given: a fresh project with two transcripts
	isolateUserConfig(t)
	dir := newReconcileProject(t, map[string]string{
		"brew-day.txt": goodTranscript,
		"hops.txt":     hopNotes,
	})

	// When: running twice with --dry-run
	first := reconcileSummary(t, "reconcile", "--dry-run", "--json", dir)
	second := reconcileSummary(t, "reconcile", "--dry-run", "--json", dir)

	// Then: decisions are reported but nothing is persisted, so the
	// second dry run sees the same pending work
	assert.True(t, first.DryRun)
	assert.Equal(t, 2, first.FilesProcessed, "dry run counts planned work")
	assert.Equal(t, 0, first.ChunksCreated, "dry run does not chunk or embed")
	assert.Equal(t, 2, second.FilesProcessed, "nothing was written by the first dry run")
}

func TestReconcile_ProfileChangeReprocesses(t *testing.T) {
	// Given: a project indexed under the content-type profile
	isolateUserConfig(t)
	dir := newReconcileProject(t, map[string]string{
		"brew-day.txt": goodTranscript,
		"hops.txt":     hopNotes,
	})
	seeded := reconcileSummary(t, "reconcile", "--json", dir)
	require.Equal(t, 2, seeded.FilesProcessed)

	// When: reconciling with a forced profile override
	forced := reconcileSummary(t, "reconcile", "--json", "--profile", "balanced", dir)

	// Then: the stored profile no longer matches, so both files are
	// reprocessed instead of skipped
	assert.Equal(t, 2, forced.FilesReprocessed)
	assert.Equal(t, 0, forced.FilesSkipped)

	// And: repeating under the same override skips again
	repeat := reconcileSummary(t, "reconcile", "--json", "--profile", "balanced", dir)
	assert.Equal(t, 2, repeat.FilesSkipped)
}

func TestReconcile_ExplicitConfigFile(t *testing.T) {
	// Given: a project directory without brewindex.yaml and a config
	// file kept somewhere else
	isolateUserConfig(t)
	dir := t.TempDir()
	docsDir := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "brew-day.txt"), []byte(goodTranscript), 0o644))

	configYAML := `version: 1
sources:
  - path: docs
    content_type: transcript
store:
  backend: sqlite
  path: index.db
  collection: brewing_test
embeddings:
  provider: static
`
	configPath := filepath.Join(t.TempDir(), "alt-config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o644))

	// When: reconciling with --config
	summary := reconcileSummary(t, "reconcile", "--json", "--config", configPath, dir)

	// Then: the explicit file drives the run, with its relative paths
	// resolved against the project directory
	assert.Equal(t, 1, summary.FilesProcessed)
	assert.FileExists(t, filepath.Join(dir, "index.db"))
}

func TestReconcile_MissingSourcesRefused(t *testing.T) {
	// Given: a project whose source directory does not exist
	isolateUserConfig(t)
	dir := t.TempDir()
	configYAML := "version: 1\nsources:\n  - path: docs\n    content_type: transcript\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brewindex.yaml"), []byte(configYAML), 0o644))

	// When: reconciling
	_, err := runCLI(t, "reconcile", "--json", dir)

	// Then: the run is refused instead of orphan-deleting everything
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source directories exist")
}

func TestCleanup_RemovesOrphansOnly(t *testing.T) {
	// Given: an indexed project where one file was deleted and another
	// added since the last run
	isolateUserConfig(t)
	dir := newReconcileProject(t, map[string]string{
		"brew-day.txt": goodTranscript,
		"hops.txt":     hopNotes,
	})
	seeded := reconcileSummary(t, "reconcile", "--json", dir)
	require.Equal(t, 2, seeded.FilesProcessed)

	require.NoError(t, os.Remove(filepath.Join(dir, "docs", "hops.txt")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "yeast.txt"), []byte(goodTranscript), 0o644))

	// When: running cleanup
	summary := reconcileSummary(t, "cleanup", "--json", dir)

	// Then: orphaned records are deleted but no file is processed,
	// leaving the new file for the next reconcile
	assert.Equal(t, 1, summary.FilesOrphaned)
	assert.GreaterOrEqual(t, summary.ChunksDeleted, 1)
	assert.Equal(t, 0, summary.FilesProcessed, "cleanup never indexes new files")

	next := reconcileSummary(t, "reconcile", "--json", dir)
	assert.Equal(t, 1, next.FilesProcessed, "the new file is still pending")
	assert.Equal(t, 1, next.FilesSkipped)
}
