package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcascante/brew-master-ai/internal/config"
	"github.com/jcascante/brew-master-ai/internal/embed"
	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
	"github.com/jcascante/brew-master-ai/internal/output"
	"github.com/jcascante/brew-master-ai/internal/profile"
	"github.com/jcascante/brew-master-ai/internal/reconcile"
	"github.com/jcascante/brew-master-ai/internal/runlock"
	"github.com/jcascante/brew-master-ai/internal/scanner"
	"github.com/jcascante/brew-master-ai/internal/store"
	"github.com/jcascante/brew-master-ai/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch the source tree and reconcile on changes",
		Long: `Watch runs one full reconciliation, then keeps the collection in
sync as files change: filesystem events are debounced into batches,
and each settled batch triggers another run.

Inotify watches are used where available, with a polling fallback.
Each run takes the same cross-process lease as 'reconcile'; if another
process holds it, the batch is skipped and the next change retries.

Runs until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, cmd, args)
		},
	}

	return cmd
}

// watchDeps holds the components shared across watch-triggered runs.
// Only the Reconciler and its lock are rebuilt per run.
type watchDeps struct {
	store    store.VectorStore
	embedder embed.Embedder
	scanner  *scanner.Scanner
	registry *profile.Registry
	cfg      *config.Config
}

func runWatch(ctx context.Context, cmd *cobra.Command, args []string) error {
	dir, err := resolveProjectDir(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}

	cleanup := setupFileLogging(cfg.Logging)
	defer cleanup()

	sources := cfg.ExistingSources()
	if len(sources) == 0 {
		return brewerrors.ConfigError("no source directories exist under "+dir, nil).
			WithSuggestion("check the sources in brewindex.yaml, or pass the project directory as an argument")
	}

	out := output.New(cmd.OutOrStdout())

	sc, err := scanner.New(sources,
		scanner.WithMaxFileSize(cfg.Processing.MaxFileSize),
		scanner.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.Store)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	embedder, err := embed.New(ctx, cfg.Embeddings)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	deps := watchDeps{
		store:    st,
		embedder: embedder,
		scanner:  sc,
		registry: registry,
		cfg:      cfg,
	}

	// Converge once before watching, so the event loop only has to
	// keep up with deltas.
	out.Statusf("🚀", "Initial reconciliation of %s...", cfg.Store.Collection)
	summary, err := watchReconcile(ctx, deps)
	switch {
	case err == nil:
		printRunSummary(out, summary)
	case brewerrors.GetCode(err) == brewerrors.ErrCodeLeaseHeld:
		out.Warning("Another reconciliation is running; will retry on the next change")
	default:
		return err
	}

	roots := make([]string, len(sources))
	for i, src := range sources {
		roots[i] = src.Path
	}

	w, err := watcher.NewHybridWatcher(watcher.Options{
		Debounce:     cfg.Watch.DebounceDuration(),
		PollInterval: cfg.Watch.PollDuration(),
		Extensions:   watchExtensions(sources),
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx, roots) }()

	out.Statusf("👀", "Watching %d directories (%s, %s debounce). Ctrl+C to stop.",
		len(roots), w.Mode(), cfg.Watch.DebounceDuration())

	events := w.Events()
	watchErrs := w.Errors()

	for {
		select {
		case err := <-startErr:
			// The watcher stopped: a cancelled context is the normal
			// Ctrl+C path, anything else is a startup failure.
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			out.Newline()
			out.Status("👋", "Watch stopped")
			return nil

		case batch, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			batch = drainEvents(events, batch)
			out.Newline()
			out.Statusf("🔄", "%d changes settled, reconciling...", len(batch))

			summary, err := watchReconcile(ctx, deps)
			switch {
			case err == nil:
				printRunSummary(out, summary)
			case errors.Is(err, context.Canceled):
				// Shutdown races the run; the startErr case reports it.
			case brewerrors.GetCode(err) == brewerrors.ErrCodeLeaseHeld:
				out.Warning("Another reconciliation holds the lease; skipping this batch")
			default:
				// Transient failures (store restart, Ollama hiccup)
				// should not kill the watch.
				out.Warningf("Reconciliation failed: %v", err)
				slog.Error("watch reconciliation failed", slog.String("error", err.Error()))
			}

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			out.Warningf("Watcher: %v", err)
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// drainEvents coalesces batches that settled while a run was in
// flight, so one run covers them all.
func drainEvents(ch <-chan []watcher.FileEvent, batch []watcher.FileEvent) []watcher.FileEvent {
	for {
		select {
		case more, ok := <-ch:
			if !ok {
				return batch
			}
			batch = append(batch, more...)
		default:
			return batch
		}
	}
}

// watchReconcile runs one reconciliation with the shared components
// and a fresh lease.
func watchReconcile(ctx context.Context, deps watchDeps) (*reconcile.Summary, error) {
	rec, err := reconcile.New(reconcile.Dependencies{
		Store:    deps.store,
		Embedder: deps.embedder,
		Scanner:  deps.scanner,
		Registry: deps.registry,
		Logger:   slog.Default(),
		Lock:     runlock.New("", storeTarget(deps.cfg.Store), deps.cfg.Store.Collection),
	}, reconcile.Options{
		Workers:       deps.cfg.Processing.Workers,
		ManualProfile: deps.cfg.Processing.Profile,
		VerifyContent: deps.cfg.Processing.VerifyContent,
	})
	if err != nil {
		return nil, err
	}
	return rec.Run(ctx)
}

// printRunSummary prints one compact line per run.
func printRunSummary(out *output.Writer, s *reconcile.Summary) {
	duration := s.Duration.Round(time.Millisecond)

	var parts []string
	if s.FilesProcessed > 0 {
		parts = append(parts, fmt.Sprintf("%d new", s.FilesProcessed))
	}
	if s.FilesReprocessed > 0 {
		parts = append(parts, fmt.Sprintf("%d reprocessed", s.FilesReprocessed))
	}
	if s.FilesOrphaned > 0 {
		parts = append(parts, fmt.Sprintf("%d orphaned", s.FilesOrphaned))
	}
	if s.FilesFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.FilesFailed))
	}

	if len(parts) == 0 {
		out.Statusf("✅", "In sync: %d files checked in %s", s.FilesSkipped, duration)
		return
	}

	line := fmt.Sprintf("%s in %s", strings.Join(parts, ", "), duration)
	if s.FilesFailed > 0 {
		out.Warning(line)
	} else {
		out.Success(line)
	}
}
