package reconcile

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcascante/brew-master-ai/internal/embed"
	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
	"github.com/jcascante/brew-master-ai/internal/profile"
	"github.com/jcascante/brew-master-ai/internal/runlock"
	"github.com/jcascante/brew-master-ai/internal/scanner"
	"github.com/jcascante/brew-master-ai/internal/store"
)

// Fixture documents. Each passes the general_brewing bounds and fits
// in a single chunk, so file counts map directly onto record counts.
const (
	docMash = `Mash the crushed pale malt at sixty seven degrees Celsius for one hour, stirring every fifteen minutes to avoid dough balls. Check conversion with an iodine test before raising to mashout temperature. A thinner mash ratio around three liters per kilogram improves enzyme mobility and keeps the runnings clear during lautering.`

	docHops = `Add the bittering hops at the start of a rolling sixty minute boil and reserve aroma additions for the final ten minutes. Whirlpool at eighty degrees to extract oils without driving off volatiles. Late hopping preserves the citrus character of modern varieties while keeping measured bitterness close to the recipe target.`

	docYeast = `Pitch a healthy starter of ale yeast once the wort cools below twenty degrees Celsius and aerate thoroughly before sealing the fermenter. Hold a steady fermentation temperature for the first three days, then allow a gentle free rise to finish attenuation and clean up diacetyl before cold crashing.`

	docWater = `Brewing water chemistry shapes the finished beer more than most novices expect. Adjust calcium toward one hundred parts per million for yeast health, balance sulfate against chloride to steer the hop impression, and verify the mash pH lands between five point two and five point six after the grain is stirred in.`
)

// testEnv wires a reconciler against a sqlite store, a static embedder,
// and a temporary source directory.
type testEnv struct {
	t      *testing.T
	srcDir string
	store  *store.SQLiteStore
	reg    *profile.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(store.Config{
		Backend: store.BackendSQLite,
		Path:    filepath.Join(t.TempDir(), "brew.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg, err := profile.NewRegistry()
	require.NoError(t, err)

	return &testEnv{t: t, srcDir: t.TempDir(), store: st, reg: reg}
}

func (e *testEnv) write(name, text string) {
	e.t.Helper()
	path := filepath.Join(e.srcDir, filepath.FromSlash(name))
	require.NoError(e.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(e.t, os.WriteFile(path, []byte(text), 0o644))
}

func (e *testEnv) remove(name string) {
	e.t.Helper()
	require.NoError(e.t, os.Remove(filepath.Join(e.srcDir, filepath.FromSlash(name))))
}

func (e *testEnv) deps() Dependencies {
	e.t.Helper()
	scn, err := scanner.New([]scanner.Source{{Path: e.srcDir, ContentType: "manual"}})
	require.NoError(e.t, err)
	return Dependencies{
		Store:    e.store,
		Embedder: embed.NewStaticEmbedder(),
		Scanner:  scn,
		Registry: e.reg,
		Logger:   quietLogger(),
	}
}

func (e *testEnv) run(opts Options) *Summary {
	e.t.Helper()
	r, err := New(e.deps(), opts)
	require.NoError(e.t, err)
	summary, err := r.Run(context.Background())
	require.NoError(e.t, err)
	return summary
}

func (e *testEnv) count() int {
	e.t.Helper()
	n, err := e.store.Count(context.Background())
	require.NoError(e.t, err)
	return n
}

// identities returns the set of source identities currently stored.
func (e *testEnv) identities() map[string]bool {
	e.t.Helper()
	points, err := e.store.Scroll(context.Background())
	require.NoError(e.t, err)
	ids := make(map[string]bool)
	for _, p := range points {
		if s, ok := p.Payload["source_identity"].(string); ok {
			ids[s] = true
		}
	}
	return ids
}

// profilesUsed returns the distinct profile_used values currently stored.
func (e *testEnv) profilesUsed() map[string]bool {
	e.t.Helper()
	points, err := e.store.Scroll(context.Background())
	require.NoError(e.t, err)
	profiles := make(map[string]bool)
	for _, p := range points {
		if s, ok := p.Payload["profile_used"].(string); ok {
			profiles[s] = true
		}
	}
	return profiles
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_RequiresDependencies(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name    string
		mutate  func(*Dependencies)
		opts    Options
		wantErr string
	}{
		{
			name:    "missing store",
			mutate:  func(d *Dependencies) { d.Store = nil },
			wantErr: "store",
		},
		{
			name:    "missing scanner",
			mutate:  func(d *Dependencies) { d.Scanner = nil },
			wantErr: "scanner",
		},
		{
			name:    "missing registry",
			mutate:  func(d *Dependencies) { d.Registry = nil },
			wantErr: "registry",
		},
		{
			name:    "missing embedder for a write run",
			mutate:  func(d *Dependencies) { d.Embedder = nil },
			wantErr: "embedder",
		},
		{
			name:   "embedder optional for dry runs",
			mutate: func(d *Dependencies) { d.Embedder = nil },
			opts:   Options{DryRun: true},
		},
		{
			name:   "embedder optional for orphan cleanup",
			mutate: func(d *Dependencies) { d.Embedder = nil },
			opts:   Options{OrphansOnly: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := e.deps()
			tt.mutate(&deps)

			r, err := New(deps, tt.opts)

			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.NotNil(t, r)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReconciler_WorkerPoolSize(t *testing.T) {
	e := newTestEnv(t)

	r, err := New(e.deps(), Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, r.workers())

	r, err = New(e.deps(), Options{Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, r.workers())
}

func TestReconciler_FirstRunIndexesEverything(t *testing.T) {
	// Given three new documents and an empty store
	e := newTestEnv(t)
	e.write("mash.txt", docMash)
	e.write("hops.txt", docHops)
	e.write("yeast.txt", docYeast)

	// When reconciling
	summary := e.run(Options{})

	// Then every file is processed and nothing else happens
	assert.NotEmpty(t, summary.RunID)
	assert.False(t, summary.DryRun)
	assert.Equal(t, 0, summary.FilesChecked)
	assert.Equal(t, 3, summary.FilesProcessed)
	assert.Equal(t, 0, summary.FilesReprocessed)
	assert.Equal(t, 0, summary.FilesSkipped)
	assert.Equal(t, 0, summary.FilesOrphaned)
	assert.Equal(t, 0, summary.FilesFailed)
	assert.Empty(t, summary.Errors)
	assert.GreaterOrEqual(t, summary.ChunksCreated, 3)
	assert.Equal(t, summary.ChunksCreated, e.count())

	assert.Equal(t, map[string]bool{
		"mash.txt":  true,
		"hops.txt":  true,
		"yeast.txt": true,
	}, e.identities())
}

func TestReconciler_SecondRunIsIdempotent(t *testing.T) {
	// Given an already indexed source tree
	e := newTestEnv(t)
	e.write("mash.txt", docMash)
	e.write("hops.txt", docHops)
	e.write("yeast.txt", docYeast)
	e.run(Options{})
	before := e.count()

	// When reconciling again without any change
	summary := e.run(Options{})

	// Then everything is skipped and the store is untouched
	assert.Equal(t, 3, summary.FilesChecked)
	assert.Equal(t, 3, summary.FilesSkipped)
	assert.Equal(t, 0, summary.FilesProcessed)
	assert.Equal(t, 0, summary.FilesReprocessed)
	assert.Equal(t, 0, summary.FilesOrphaned)
	assert.Equal(t, 0, summary.FilesFailed)
	assert.Equal(t, 0, summary.ChunksCreated)
	assert.Equal(t, 0, summary.ChunksDeleted)
	assert.Equal(t, before, e.count())
}

func TestReconciler_ReconcilesRemovalsAndAdditions(t *testing.T) {
	// Given three indexed files
	e := newTestEnv(t)
	e.write("mash.txt", docMash)
	e.write("hops.txt", docHops)
	e.write("yeast.txt", docYeast)
	e.run(Options{})

	// When one file is removed and another added before the next run
	e.remove("hops.txt")
	e.write("water.txt", docWater)
	summary := e.run(Options{})

	// Then the orphan is deleted, the new file is indexed, and the
	// unchanged files are skipped
	assert.Equal(t, 3, summary.FilesChecked)
	assert.Equal(t, 1, summary.FilesOrphaned)
	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 2, summary.FilesSkipped)
	assert.Equal(t, 0, summary.FilesReprocessed)
	assert.GreaterOrEqual(t, summary.ChunksDeleted, 1)

	assert.Equal(t, map[string]bool{
		"mash.txt":  true,
		"yeast.txt": true,
		"water.txt": true,
	}, e.identities())
}

func TestReconciler_ProfileChangeReprocesses(t *testing.T) {
	// Given a file indexed under the default profile
	e := newTestEnv(t)
	e.write("mash.txt", docMash)
	e.run(Options{})
	require.Equal(t, map[string]bool{"general_brewing": true}, e.profilesUsed())

	// When reconciling with a different profile override
	summary := e.run(Options{ManualProfile: "technical_brewing"})

	// Then the file is reprocessed under the new profile
	assert.Equal(t, 1, summary.FilesReprocessed)
	assert.Equal(t, 0, summary.FilesProcessed)
	assert.Equal(t, 0, summary.FilesSkipped)
	assert.GreaterOrEqual(t, summary.ChunksDeleted, 1)
	assert.Equal(t, map[string]bool{"technical_brewing": true}, e.profilesUsed())

	// And a repeat run under the same override settles into a skip
	summary = e.run(Options{ManualProfile: "technical_brewing"})
	assert.Equal(t, 1, summary.FilesSkipped)
	assert.Equal(t, 0, summary.FilesReprocessed)
}

func TestReconciler_UnknownManualProfileFallsBackToDefault(t *testing.T) {
	// Given a file indexed under the default profile
	e := newTestEnv(t)
	e.write("mash.txt", docMash)
	e.run(Options{})

	// When reconciling with an override that does not exist
	summary := e.run(Options{ManualProfile: "imperial_stout_9000"})

	// Then the override degrades to the default and the file is
	// skipped instead of reprocessing forever
	assert.Equal(t, 1, summary.FilesSkipped)
	assert.Equal(t, 0, summary.FilesReprocessed)
	assert.Equal(t, map[string]bool{"general_brewing": true}, e.profilesUsed())
}

func TestReconciler_VerifyContentCatchesEdits(t *testing.T) {
	// Given an indexed file whose content is then rewritten
	e := newTestEnv(t)
	e.write("mash.txt", docMash)
	e.run(Options{})
	e.write("mash.txt", docWater)

	// When reconciling without content verification
	summary := e.run(Options{})

	// Then the edit goes unnoticed
	assert.Equal(t, 1, summary.FilesSkipped)
	assert.Equal(t, 0, summary.FilesReprocessed)

	// When reconciling with content verification
	summary = e.run(Options{VerifyContent: true})

	// Then the changed content forces a reprocess
	assert.Equal(t, 1, summary.FilesReprocessed)
	assert.Equal(t, 0, summary.FilesSkipped)

	// And once reindexed the hash matches again
	summary = e.run(Options{VerifyContent: true})
	assert.Equal(t, 1, summary.FilesSkipped)
	assert.Equal(t, 0, summary.FilesReprocessed)
}

func TestReconciler_DryRunWritesNothing(t *testing.T) {
	// Given new documents and a dry-run reconciler without an embedder
	e := newTestEnv(t)
	e.write("mash.txt", docMash)
	e.write("hops.txt", docHops)
	deps := e.deps()
	deps.Embedder = nil
	r, err := New(deps, Options{DryRun: true})
	require.NoError(t, err)

	// When running
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	// Then decisions are reported but the store stays empty
	assert.True(t, summary.DryRun)
	assert.Equal(t, 0, summary.FilesChecked)
	assert.Equal(t, 2, summary.FilesProcessed)
	assert.Equal(t, 0, summary.ChunksCreated)
	assert.Equal(t, 0, e.count())
}

func TestReconciler_DryRunReportsOrphansWithoutDeleting(t *testing.T) {
	// Given an indexed tree with one file since removed
	e := newTestEnv(t)
	e.write("mash.txt", docMash)
	e.write("hops.txt", docHops)
	e.run(Options{})
	before := e.count()
	e.remove("hops.txt")

	// When reconciling in dry-run mode
	summary := e.run(Options{DryRun: true})

	// Then the orphan is counted but its records survive
	assert.Equal(t, 1, summary.FilesOrphaned)
	assert.GreaterOrEqual(t, summary.ChunksDeleted, 1)
	assert.Equal(t, 1, summary.FilesSkipped)
	assert.Equal(t, before, e.count())
	assert.True(t, e.identities()["hops.txt"])
}

func TestReconciler_OrphansOnlySkipsProcessing(t *testing.T) {
	// Given an indexed tree, a removal, and a brand new file
	e := newTestEnv(t)
	e.write("mash.txt", docMash)
	e.write("hops.txt", docHops)
	e.run(Options{})
	e.remove("hops.txt")
	e.write("water.txt", docWater)

	// When running orphan cleanup only, without an embedder
	deps := e.deps()
	deps.Embedder = nil
	r, err := New(deps, Options{OrphansOnly: true})
	require.NoError(t, err)
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	// Then the orphan is deleted and the processing phase never runs
	assert.Equal(t, 1, summary.FilesOrphaned)
	assert.Equal(t, 0, summary.FilesProcessed)
	assert.Equal(t, 0, summary.FilesSkipped)
	assert.Equal(t, 0, summary.ChunksCreated)
	assert.Zero(t, summary.Timings.Process)

	ids := e.identities()
	assert.True(t, ids["mash.txt"])
	assert.False(t, ids["hops.txt"])
	assert.False(t, ids["water.txt"], "new files must wait for a full run")
}

func TestReconciler_FailedFileDoesNotAbortTheRun(t *testing.T) {
	// Given one healthy document and one too short to index
	e := newTestEnv(t)
	e.write("mash.txt", docMash)
	e.write("stub.txt", "too short to index")

	// When reconciling
	summary := e.run(Options{})

	// Then the failure is recorded and the healthy file still lands
	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 1, summary.FilesFailed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "stub.txt")
	assert.Equal(t, map[string]bool{"mash.txt": true}, e.identities())

	// And the stub keeps failing on later runs until it is fixed
	summary = e.run(Options{})
	assert.Equal(t, 1, summary.FilesSkipped)
	assert.Equal(t, 1, summary.FilesFailed)
}

func TestReconciler_MixedProfileRecordsAreReprocessed(t *testing.T) {
	// Given a source whose stored records disagree on their profile
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.store.EnsureCollection(ctx, embed.StaticDimensions))
	vec := make([]float32, embed.StaticDimensions)
	require.NoError(t, e.store.Upsert(ctx, []store.Record{
		{ID: "legacy-0", Source: "mash.txt", Vector: vec, Payload: map[string]any{
			"source_identity": "mash.txt",
			"profile_used":    "general_brewing",
		}},
		{ID: "legacy-1", Source: "mash.txt", Vector: vec, Payload: map[string]any{
			"source_identity": "mash.txt",
			"profile_used":    "technical_brewing",
		}},
	}))
	e.write("mash.txt", docMash)

	// When reconciling
	summary := e.run(Options{})

	// Then the inconsistent records are replaced wholesale
	assert.Equal(t, 1, summary.FilesChecked)
	assert.Equal(t, 1, summary.FilesReprocessed)
	assert.Equal(t, 2, summary.ChunksDeleted)
	assert.Equal(t, map[string]bool{"general_brewing": true}, e.profilesUsed())

	points, err := e.store.Scroll(ctx)
	require.NoError(t, err)
	for _, p := range points {
		assert.NotEqual(t, "legacy-0", p.ID)
		assert.NotEqual(t, "legacy-1", p.ID)
	}
}

func TestReconciler_RecordsWithoutIdentityAreLeftAlone(t *testing.T) {
	// Given a stored record that carries no source identity
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.store.EnsureCollection(ctx, embed.StaticDimensions))
	require.NoError(t, e.store.Upsert(ctx, []store.Record{
		{
			ID:      "stray-0",
			Vector:  make([]float32, embed.StaticDimensions),
			Payload: map[string]any{"text": "hand written tasting note"},
		},
	}))

	// When reconciling an empty source tree
	summary := e.run(Options{})

	// Then the record is neither counted nor deleted
	assert.Equal(t, 0, summary.FilesChecked)
	assert.Equal(t, 0, summary.FilesOrphaned)
	assert.Equal(t, 1, e.count())

	points, err := e.store.Scroll(ctx)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "stray-0", points[0].ID)
}

func TestReconciler_LeaseExcludesConcurrentRuns(t *testing.T) {
	// Given a lease already held by another run
	e := newTestEnv(t)
	e.write("mash.txt", docMash)
	lockDir := t.TempDir()
	held := runlock.New(lockDir, "sqlite", "brew_test")
	require.NoError(t, held.Acquire())

	deps := e.deps()
	deps.Lock = runlock.New(lockDir, "sqlite", "brew_test")
	r, err := New(deps, Options{})
	require.NoError(t, err)

	// When running while the lease is held
	summary, err := r.Run(context.Background())

	// Then the run aborts before touching anything
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Equal(t, brewerrors.ErrCodeLeaseHeld, brewerrors.GetCode(err))
	assert.True(t, brewerrors.IsFatal(err))
	assert.Equal(t, 0, e.count())

	// And once the lease is released the run goes through
	require.NoError(t, held.Release())
	summary, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesProcessed)
}

func TestReconciler_NestedDirectoriesKeepSlashIdentities(t *testing.T) {
	// Given documents nested under subdirectories
	e := newTestEnv(t)
	e.write("recipes/ipa.txt", docHops)
	e.write("process/fermentation.txt", docYeast)

	// When reconciling twice
	first := e.run(Options{})
	second := e.run(Options{})

	// Then identities are slash-separated relative paths and stay
	// stable across runs
	assert.Equal(t, 2, first.FilesProcessed)
	assert.Equal(t, 2, second.FilesSkipped)
	assert.Equal(t, map[string]bool{
		"recipes/ipa.txt":          true,
		"process/fermentation.txt": true,
	}, e.identities())
}
