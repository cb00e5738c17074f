package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jcascante/brew-master-ai/internal/embed"
	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
	"github.com/jcascante/brew-master-ai/internal/output"
	"github.com/jcascante/brew-master-ai/internal/reconcile"
	"github.com/jcascante/brew-master-ai/internal/runlock"
	"github.com/jcascante/brew-master-ai/internal/scanner"
	"github.com/jcascante/brew-master-ai/internal/store"
)

func newReconcileCmd() *cobra.Command {
	var (
		dryRun        bool
		noTUI         bool
		jsonOutput    bool
		workers       int
		profileName   string
		verifyContent bool
	)

	cmd := &cobra.Command{
		Use:     "reconcile [path]",
		Aliases: []string{"index"},
		Short:   "Converge the vector collection to the source tree",
		Long: `Reconcile compares the indexed collection against the documents on
disk and applies the difference.

Files that are indexed but gone from disk have their records deleted.
New files are validated, chunked, enriched, embedded, and upserted.
Indexed files whose size, mtime, and processing profile are unchanged
are skipped, so repeat runs only pay for what changed.

Use --dry-run to see the decisions without touching the collection.
Only one reconciliation can run against a collection at a time; a
second invocation fails fast with exit code 2.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Ctrl+C cancels the run; in-flight upserts finish and the
			// lease is released before exit.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runReconcile(ctx, cmd, args, reconcileFlags{
				dryRun:        dryRun,
				orphansOnly:   false,
				noTUI:         noTUI,
				jsonOutput:    jsonOutput,
				workers:       workers,
				profileName:   profileName,
				verifyContent: verifyContent,
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report decisions without writing to the store")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run summary as JSON")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent file workers (0 uses the configured value)")
	cmd.Flags().StringVar(&profileName, "profile", "", "Force this processing profile for every file")
	cmd.Flags().BoolVar(&verifyContent, "verify-content", false, "Also hash contents of apparently unchanged files")

	return cmd
}

// reconcileFlags carries the per-invocation flag values into the run
// function. The cleanup command reuses it with orphansOnly set.
type reconcileFlags struct {
	dryRun        bool
	orphansOnly   bool
	noTUI         bool
	jsonOutput    bool
	workers       int
	profileName   string
	verifyContent bool
}

func runReconcile(ctx context.Context, cmd *cobra.Command, args []string, flags reconcileFlags) error {
	dir, err := resolveProjectDir(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}

	// Flags win over the config file.
	if flags.workers > 0 {
		cfg.Processing.Workers = flags.workers
	}
	if flags.profileName != "" {
		cfg.Processing.Profile = flags.profileName
	}
	if flags.verifyContent {
		cfg.Processing.VerifyContent = true
	}

	cleanup := setupFileLogging(cfg.Logging)
	defer cleanup()

	sources := cfg.ExistingSources()
	if len(sources) == 0 {
		// Reconciling against an absent tree would orphan-delete the
		// whole collection, so refuse instead.
		return brewerrors.ConfigError("no source directories exist under "+dir, nil).
			WithSuggestion("check the sources in brewindex.yaml, or pass the project directory as an argument")
	}

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

	// Dry runs and orphan sweeps never embed, so skip the provider
	// handshake entirely.
	var embedder embed.Embedder
	if !flags.dryRun && !flags.orphansOnly {
		embedder, err = embed.New(ctx, cfg.Embeddings)
		if err != nil {
			return err
		}
		defer func() { _ = embedder.Close() }()
	}

	var renderer = buildRenderer(cmd.OutOrStdout(), cfg.Store.Collection, flags.noTUI)
	if flags.jsonOutput {
		// Keep stdout machine-readable: the summary is the only output.
		renderer = nil
	}

	rec, err := reconcile.New(reconcile.Dependencies{
		Store:    st,
		Embedder: embedder,
		Scanner:  sc,
		Registry: registry,
		Renderer: renderer,
		Logger:   slog.Default(),
		Lock:     runlock.New("", storeTarget(cfg.Store), cfg.Store.Collection),
	}, reconcile.Options{
		Workers:       cfg.Processing.Workers,
		ManualProfile: cfg.Processing.Profile,
		VerifyContent: cfg.Processing.VerifyContent,
		DryRun:        flags.dryRun,
		OrphansOnly:   flags.orphansOnly,
	})
	if err != nil {
		return err
	}

	// Returned unwrapped so a held lease keeps its error code for the
	// exit-status mapping in main.
	summary, err := rec.Run(ctx)
	if err != nil {
		return err
	}

	if flags.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	if flags.dryRun {
		out := output.New(cmd.OutOrStdout())
		out.Status("🔍", "Dry run: no records were written or deleted")
	}

	return nil
}
