// Package reconcile converges the vector collection to the current
// filesystem state. Each run snapshots the store, scans the configured
// sources, garbage-collects records whose file is gone, and runs the
// validate → preprocess → chunk → enrich → embed → upsert pipeline for
// files that are new or whose effective profile changed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jcascante/brew-master-ai/internal/chunk"
	"github.com/jcascante/brew-master-ai/internal/embed"
	"github.com/jcascante/brew-master-ai/internal/enrich"
	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
	"github.com/jcascante/brew-master-ai/internal/profile"
	"github.com/jcascante/brew-master-ai/internal/runlock"
	"github.com/jcascante/brew-master-ai/internal/scanner"
	"github.com/jcascante/brew-master-ai/internal/store"
	"github.com/jcascante/brew-master-ai/internal/textproc"
	"github.com/jcascante/brew-master-ai/internal/ui"
)

// DefaultWorkers is the worker pool size when Options.Workers is zero.
const DefaultWorkers = 4

// Dependencies are the ports a Reconciler drives. Store, Scanner, and
// Registry are always required; Embedder only for runs that write.
type Dependencies struct {
	Store    store.VectorStore
	Embedder embed.Embedder
	Scanner  *scanner.Scanner
	Registry *profile.Registry

	// Renderer shows progress; nil disables display.
	Renderer ui.Renderer
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Lock is the cross-process run lease; nil skips exclusion.
	Lock *runlock.Lock
	// Enricher defaults to the built-in brewing taxonomy.
	Enricher *enrich.Enricher
}

// Options tune a run.
type Options struct {
	// Workers bounds the processing pool (default 4).
	Workers int
	// ManualProfile overrides profile selection for every file.
	ManualProfile string
	// VerifyContent enables the content-hash tripwire: an indexed
	// file whose preprocessed text hash changed is reprocessed.
	VerifyContent bool
	// DryRun reports decisions without writing or embedding.
	DryRun bool
	// OrphansOnly runs the orphan cleanup phase and stops.
	OrphansOnly bool
}

// Reconciler runs the reconciliation state machine.
type Reconciler struct {
	store    store.VectorStore
	embedder embed.Embedder
	scanner  *scanner.Scanner
	registry *profile.Registry
	renderer ui.Renderer
	logger   *slog.Logger
	lock     *runlock.Lock
	enricher *enrich.Enricher
	pre      *textproc.Preprocessor
	opts     Options
	retry    brewerrors.RetryConfig
}

// New validates the dependencies and builds a Reconciler.
func New(deps Dependencies, opts Options) (*Reconciler, error) {
	if deps.Store == nil {
		return nil, brewerrors.ConfigError("reconciler requires a store", nil)
	}
	if deps.Scanner == nil {
		return nil, brewerrors.ConfigError("reconciler requires a scanner", nil)
	}
	if deps.Registry == nil {
		return nil, brewerrors.ConfigError("reconciler requires a profile registry", nil)
	}
	if deps.Embedder == nil && !opts.DryRun && !opts.OrphansOnly {
		return nil, brewerrors.ConfigError("reconciler requires an embedder for runs that write", nil)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = noopRenderer{}
	}
	enricher := deps.Enricher
	if enricher == nil {
		enricher = enrich.New()
	}

	return &Reconciler{
		store:    deps.Store,
		embedder: deps.Embedder,
		scanner:  deps.Scanner,
		registry: deps.Registry,
		renderer: renderer,
		logger:   logger,
		lock:     deps.Lock,
		enricher: enricher,
		pre:      textproc.NewPreprocessor(logger),
		opts:     opts,
		retry:    brewerrors.DefaultRetryConfig(),
	}, nil
}

// Run executes one reconciliation pass: lease, snapshot, scan, orphan
// cleanup, then the per-file pipeline. Per-file failures accumulate in
// the summary; only a held lease, a failed snapshot, or a failed scan
// abort the run.
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString(), DryRun: r.opts.DryRun}

	if r.lock != nil {
		if err := r.lock.Acquire(); err != nil {
			return nil, err
		}
		defer func() {
			if err := r.lock.Release(); err != nil {
				r.logger.Warn("failed to release run lease",
					slog.String("error", err.Error()))
			}
		}()
	}

	if err := r.renderer.Start(ctx); err != nil {
		return nil, brewerrors.InternalError("failed to start progress renderer", err)
	}
	defer func() { _ = r.renderer.Stop() }()

	r.logger.Info("reconciliation starting",
		slog.String("run_id", summary.RunID),
		slog.Bool("dry_run", r.opts.DryRun),
		slog.Bool("orphans_only", r.opts.OrphansOnly),
		slog.Int("workers", r.workers()))

	if !r.opts.DryRun && !r.opts.OrphansOnly {
		if err := brewerrors.Retry(ctx, r.retry, func() error {
			return r.store.EnsureCollection(ctx, r.embedder.Dimensions())
		}); err != nil {
			return nil, err
		}
	}

	// Snapshot completes before any write.
	snapStart := time.Now()
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage: ui.StageSnapshot, Message: "loading store snapshot"})
	snap, err := r.takeSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	summary.FilesChecked = len(snap.sources)
	summary.Timings.Snapshot = time.Since(snapStart)
	if snap.unattributable > 0 {
		r.logger.Warn("records without a source identity left untouched",
			slog.Int("records", snap.unattributable))
	}

	scanStart := time.Now()
	docs, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	summary.Timings.Scan = time.Since(scanStart)

	cleanupStart := time.Now()
	r.deleteOrphans(ctx, snap, docs, summary)
	summary.Timings.Cleanup = time.Since(cleanupStart)

	if !r.opts.OrphansOnly {
		processStart := time.Now()
		if err := r.processAll(ctx, snap, docs, summary); err != nil {
			return nil, err
		}
		summary.Timings.Process = time.Since(processStart)
	}

	summary.Duration = time.Since(start)
	r.renderer.Complete(r.completionStats(summary))
	r.logger.Info("reconciliation complete",
		slog.String("run_id", summary.RunID),
		slog.Int("checked", summary.FilesChecked),
		slog.Int("processed", summary.FilesProcessed),
		slog.Int("reprocessed", summary.FilesReprocessed),
		slog.Int("skipped", summary.FilesSkipped),
		slog.Int("orphaned", summary.FilesOrphaned),
		slog.Int("failed", summary.FilesFailed),
		slog.Int("chunks_created", summary.ChunksCreated),
		slog.Int("chunks_deleted", summary.ChunksDeleted),
		slog.Duration("duration", summary.Duration))
	return summary, nil
}

func (r *Reconciler) workers() int {
	if r.opts.Workers > 0 {
		return r.opts.Workers
	}
	return DefaultWorkers
}

// takeSnapshot scrolls the full store. A missing collection is an
// empty snapshot, so status and dry runs work before the first write.
func (r *Reconciler) takeSnapshot(ctx context.Context) (*snapshot, error) {
	points, err := brewerrors.RetryWithResult(ctx, r.retry, func() ([]store.ScrollPoint, error) {
		return r.store.Scroll(ctx)
	})
	if err != nil {
		if isMissingCollection(err) {
			return buildSnapshot(nil), nil
		}
		return nil, brewerrors.New(brewerrors.ErrCodeSnapshotFailed,
			"failed to snapshot the store", err)
	}
	return buildSnapshot(points), nil
}

// scan drains the scanner into an identity-keyed map. Any emitted scan
// error aborts: orphan deletion against a partial view would delete
// records for files that still exist.
func (r *Reconciler) scan(ctx context.Context) (map[string]scanner.Document, error) {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := r.scanner.Scan(scanCtx)
	if err != nil {
		return nil, err
	}

	docs := make(map[string]scanner.Document)
	for res := range results {
		if res.Err != nil {
			return nil, brewerrors.New(brewerrors.ErrCodeScanFailed,
				"source scan failed", res.Err)
		}
		doc := *res.Doc
		if _, dup := docs[doc.Identity]; dup {
			r.logger.Warn("duplicate source identity, keeping the first",
				slog.String("identity", doc.Identity))
			continue
		}
		docs[doc.Identity] = doc
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageScanning,
			Current:     len(docs),
			CurrentFile: doc.Identity,
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// deleteOrphans removes records for indexed sources that are gone from
// disk. Failures are recorded and skipped; they never block the rest
// of the run.
func (r *Reconciler) deleteOrphans(ctx context.Context, snap *snapshot, docs map[string]scanner.Document, summary *Summary) {
	var orphans []string
	for identity := range snap.sources {
		if _, onDisk := docs[identity]; !onDisk {
			orphans = append(orphans, identity)
		}
	}
	sort.Strings(orphans)

	for i, identity := range orphans {
		if ctx.Err() != nil {
			return
		}
		state := snap.sources[identity]
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageCleanup,
			Current:     i + 1,
			Total:       len(orphans),
			CurrentFile: identity,
		})

		if r.opts.DryRun {
			summary.FilesOrphaned++
			summary.ChunksDeleted += len(state.IDs)
			r.logger.Info("orphan found (dry run)",
				slog.String("identity", identity),
				slog.Int("records", len(state.IDs)))
			continue
		}

		err := brewerrors.Retry(ctx, r.retry, func() error {
			return r.store.Delete(ctx, state.IDs)
		})
		if err != nil {
			summary.addError(identity, err)
			r.renderer.AddError(ui.ErrorEvent{File: identity, Err: err})
			r.logger.Error("failed to delete orphaned records",
				slog.String("identity", identity),
				slog.String("error", err.Error()))
			continue
		}

		summary.FilesOrphaned++
		summary.ChunksDeleted += len(state.IDs)
		r.logger.Info("deleted orphaned records",
			slog.String("identity", identity),
			slog.Int("records", len(state.IDs)))
	}
}

// processAll runs the per-file pipeline over a bounded worker pool.
// One worker owns a source end-to-end, so its delete-then-upsert never
// interleaves with another worker's writes for the same source.
func (r *Reconciler) processAll(ctx context.Context, snap *snapshot, docs map[string]scanner.Document, summary *Summary) error {
	identities := make([]string, 0, len(docs))
	for identity := range docs {
		identities = append(identities, identity)
	}
	sort.Strings(identities)

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, r.workers())
	total := len(identities)
	var done atomic.Int64

loop:
	for _, identity := range identities {
		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			break loop
		}

		doc := docs[identity]
		state := snap.lookup(identity)
		g.Go(func() error {
			defer func() { <-sem }()
			if err := gctx.Err(); err != nil {
				return err
			}
			r.reconcileFile(gctx, doc, state, summary, total, &done)
			return nil
		})
	}

	return g.Wait()
}

// reconcileFile decides and, for Process/Reprocess, runs the pipeline.
func (r *Reconciler) reconcileFile(ctx context.Context, doc scanner.Document, state *sourceState, summary *Summary, total int, done *atomic.Int64) {
	prof := r.registry.Resolve(r.registry.Select(doc.ContentType, r.opts.ManualProfile))
	selected := prof.Name

	in := DecisionInput{
		Indexed:         state != nil,
		SelectedProfile: selected,
		VerifyContent:   r.opts.VerifyContent,
	}
	if state != nil {
		in.StoredProfile = state.Profile
		in.MixedProfiles = state.Mixed
		in.StoredHash = state.ContentHash
	}

	// The hash is only worth computing when it alone can decide. The
	// loaded text is kept for the pipeline if it does.
	var text, pre string
	loaded := false
	if in.VerifyContent && state != nil && !state.Mixed && state.Profile == selected {
		var err error
		text, err = doc.LoadText()
		if err != nil {
			r.fileFailed(summary, doc.Identity, err)
			r.finishFile(doc, "read failed", total, done)
			return
		}
		pre = r.pre.Preprocess(text, prof)
		loaded = true
		in.CurrentHash = enrich.ContentHash(pre)
	}

	outcome := Decide(in)
	r.logger.Debug("reconciliation decision",
		slog.String("identity", doc.Identity),
		slog.String("outcome", outcome.Kind.String()),
		slog.String("reason", outcome.Reason),
		slog.String("profile", selected))

	switch {
	case outcome.Kind == OutcomeSkip:
		summary.count(func(s *Summary) { s.FilesSkipped++ })
	case r.opts.DryRun:
		summary.count(func(s *Summary) {
			if outcome.Kind == OutcomeReprocess {
				s.FilesReprocessed++
			} else {
				s.FilesProcessed++
			}
		})
	default:
		if err := r.processFile(ctx, doc, state, prof, outcome, summary, text, pre, loaded); err != nil {
			r.fileFailed(summary, doc.Identity, err)
		}
	}

	r.finishFile(doc, outcome.Reason, total, done)
}

// processFile runs validate → preprocess → chunk → re-validate →
// enrich → embed → (delete) → upsert for one file. The text and its
// preprocessed form may already be loaded by the hash check.
func (r *Reconciler) processFile(ctx context.Context, doc scanner.Document, state *sourceState, prof profile.Profile, outcome Outcome, summary *Summary, text, pre string, loaded bool) error {
	if !loaded {
		var err error
		text, err = doc.LoadText()
		if err != nil {
			return err
		}
	}
	if verdict := textproc.Validate(text, textproc.DocumentBounds(prof)); !verdict.OK {
		return brewerrors.New(brewerrors.ErrCodeValidationOther,
			fmt.Sprintf("document rejected: %s", verdict.Reason), nil)
	}
	if !loaded {
		pre = r.pre.Preprocess(text, prof)
	}

	chunks, err := chunk.New(prof).Chunk(ctx, pre)
	if err != nil {
		return brewerrors.New(brewerrors.ErrCodeChunkingFailed, "chunking failed", err)
	}
	if len(chunks) == 0 {
		return brewerrors.New(brewerrors.ErrCodeChunkingFailed, "no chunks produced", nil)
	}

	bounds := textproc.ChunkBounds(prof)
	kept := chunks[:0]
	rejected := 0
	for _, c := range chunks {
		if verdict := textproc.Validate(c.Text, bounds); !verdict.OK {
			rejected++
			r.logger.Debug("chunk rejected",
				slog.String("identity", doc.Identity),
				slog.Int("chunk", c.Index),
				slog.String("reason", verdict.Reason))
			continue
		}
		kept = append(kept, c)
	}
	summary.count(func(s *Summary) {
		s.ChunksValidated += len(kept)
		s.ChunksRejected += rejected
	})
	if len(kept) == 0 {
		return brewerrors.New(brewerrors.ErrCodeValidationOther,
			"every chunk was rejected by re-validation", nil)
	}

	// Rejections leave index gaps; indexes key the record IDs and must
	// stay contiguous from 0.
	for i := range kept {
		kept[i].Index = i
	}

	meta := r.enricher.Enrich(doc, pre)

	texts := make([]string, len(kept))
	for i, c := range kept {
		texts[i] = c.Text
	}
	vectors, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(kept) {
		return brewerrors.New(brewerrors.ErrCodeEmbedFailed,
			fmt.Sprintf("expected %d vectors, got %d", len(kept), len(vectors)), nil)
	}

	recs := make([]store.Record, len(kept))
	for i, c := range kept {
		recs[i] = store.Record{
			ID:      store.PointID(doc.Identity, c.Index),
			Source:  doc.Identity,
			Vector:  vectors[i],
			Payload: enrich.ChunkPayload(meta, c, prof.Name),
		}
	}

	// Delete-before-write: stale records go first so no index is ever
	// double-represented. Deferred until after embedding so an embed
	// failure leaves the old records in place.
	if outcome.Kind == OutcomeReprocess && state != nil && len(state.IDs) > 0 {
		if err := brewerrors.Retry(ctx, r.retry, func() error {
			return r.store.Delete(ctx, state.IDs)
		}); err != nil {
			return fmt.Errorf("failed to delete prior records: %w", err)
		}
		summary.count(func(s *Summary) { s.ChunksDeleted += len(state.IDs) })
	}

	if err := brewerrors.Retry(ctx, r.retry, func() error {
		return r.store.Upsert(ctx, recs)
	}); err != nil {
		return err
	}

	summary.count(func(s *Summary) {
		s.ChunksCreated += len(recs)
		if outcome.Kind == OutcomeReprocess {
			s.FilesReprocessed++
		} else {
			s.FilesProcessed++
		}
	})
	r.logger.Info("file indexed",
		slog.String("identity", doc.Identity),
		slog.String("profile", prof.Name),
		slog.String("outcome", outcome.Kind.String()),
		slog.Int("chunks", len(recs)))
	return nil
}

func (r *Reconciler) fileFailed(summary *Summary, identity string, err error) {
	summary.count(func(s *Summary) { s.FilesFailed++ })
	summary.addError(identity, err)
	isWarn := brewerrors.GetCategory(err) == brewerrors.CategoryValidation
	r.renderer.AddError(ui.ErrorEvent{File: identity, Err: err, IsWarn: isWarn})
	r.logger.Error("file failed",
		slog.String("identity", identity),
		slog.String("error", err.Error()))
}

func (r *Reconciler) finishFile(doc scanner.Document, message string, total int, done *atomic.Int64) {
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:       ui.StageProcessing,
		Current:     int(done.Add(1)),
		Total:       total,
		CurrentFile: doc.Identity,
		Message:     message,
	})
}

func (r *Reconciler) completionStats(summary *Summary) ui.CompletionStats {
	stats := ui.CompletionStats{
		Processed:   summary.FilesProcessed,
		Reprocessed: summary.FilesReprocessed,
		Skipped:     summary.FilesSkipped,
		Orphaned:    summary.FilesOrphaned,
		Failed:      summary.FilesFailed,
		Chunks:      summary.ChunksCreated,
		Errors:      len(summary.Errors),
		Warnings:    summary.ChunksRejected,
		Duration:    summary.Duration,
		Stages: ui.StageTimings{
			Snapshot: summary.Timings.Snapshot,
			Scan:     summary.Timings.Scan,
			Cleanup:  summary.Timings.Cleanup,
			Process:  summary.Timings.Process,
		},
	}
	if r.embedder != nil {
		stats.Embedder = ui.EmbedderInfo{
			Model:      r.embedder.ModelName(),
			Dimensions: r.embedder.Dimensions(),
		}
	}
	return stats
}

// isMissingCollection detects a scroll against a collection that does
// not exist yet.
func isMissingCollection(err error) bool {
	var be *brewerrors.BrewError
	return errors.As(err, &be) &&
		be.Code == brewerrors.ErrCodeStoreRequest &&
		be.Details["status"] == "404"
}

// noopRenderer satisfies ui.Renderer when no display is wanted.
type noopRenderer struct{}

func (noopRenderer) Start(context.Context) error     { return nil }
func (noopRenderer) UpdateProgress(ui.ProgressEvent) {}
func (noopRenderer) AddError(ui.ErrorEvent)          {}
func (noopRenderer) Complete(ui.CompletionStats)     {}
func (noopRenderer) Stop() error                     { return nil }
