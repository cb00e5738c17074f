package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcascante/brew-master-ai/internal/config"
	"github.com/jcascante/brew-master-ai/internal/embed"
	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
	"github.com/jcascante/brew-master-ai/internal/reconcile"
	"github.com/jcascante/brew-master-ai/internal/scanner"
	"github.com/jcascante/brew-master-ai/internal/store"
	"github.com/jcascante/brew-master-ai/internal/ui"
)

// embedderProbeTimeout bounds the health check so status stays fast
// when Ollama is down.
const embedderProbeTimeout = 5 * time.Second

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [path]",
		Short: "Show collection health and pending work",
		Long: `Status reports what is indexed, what is on disk, and what a
reconcile run would do about the difference, without changing
anything. It also probes the embedding provider.

The pending counts come from the same decision engine a real run
uses, so "In sync" here means reconcile would be a no-op.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runStatus(ctx, cmd, args, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, args []string, jsonOutput bool) error {
	dir, err := resolveProjectDir(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}

	// Keep the dry-run decision logs out of the terminal.
	cleanup := setupFileLogging(cfg.Logging)
	defer cleanup()

	info, err := collectStatus(ctx, cfg)
	if err != nil {
		return err
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(*info)
	}
	return renderer.Render(*info)
}

// collectStatus gathers store counts, a dry-run decision summary, and
// the embedder health into one StatusInfo.
func collectStatus(ctx context.Context, cfg *config.Config) (*ui.StatusInfo, error) {
	info := &ui.StatusInfo{
		Collection:       cfg.Store.Collection,
		StoreBackend:     cfg.Store.Backend,
		StoreURL:         storeTarget(cfg.Store),
		EmbedderProvider: cfg.Embeddings.Provider,
		EmbedderModel:    cfg.Embeddings.Model,
	}

	st, err := store.New(cfg.Store)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	// Count tolerates a collection that does not exist yet.
	count, err := st.Count(ctx)
	if err != nil {
		return nil, err
	}
	info.IndexedChunks = count

	// Missing source directories just scan as empty here; status is
	// read-only, so the orphan counts are informational either way.
	sc, err := scanner.New(cfg.Sources,
		scanner.WithMaxFileSize(cfg.Processing.MaxFileSize),
		scanner.WithLogger(slog.Default()))
	if err != nil {
		return nil, err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	// Dry run with no lock: status never blocks, or is blocked by, a
	// live reconciliation. VerifyContent stays off so status does not
	// read every file.
	rec, err := reconcile.New(reconcile.Dependencies{
		Store:    st,
		Scanner:  sc,
		Registry: registry,
		Logger:   slog.Default(),
	}, reconcile.Options{
		Workers:       cfg.Processing.Workers,
		ManualProfile: cfg.Processing.Profile,
		DryRun:        true,
	})
	if err != nil {
		return nil, err
	}

	summary, err := rec.Run(ctx)
	if err != nil {
		return nil, err
	}

	info.IndexedFiles = summary.FilesChecked
	info.FilesOnDisk = summary.FilesProcessed + summary.FilesReprocessed +
		summary.FilesSkipped + summary.FilesFailed
	info.PendingNew = summary.FilesProcessed
	info.PendingChanged = summary.FilesReprocessed
	info.Orphans = summary.FilesOrphaned
	info.UpToDate = summary.FilesSkipped

	probeEmbedder(ctx, cfg.Embeddings, info)
	return info, nil
}

// probeEmbedder fills the embedder fields. Provider construction runs
// its own health check, so a reachable provider comes back ready.
func probeEmbedder(ctx context.Context, cfg embed.Config, info *ui.StatusInfo) {
	probeCtx, cancel := context.WithTimeout(ctx, embedderProbeTimeout)
	defer cancel()

	embedder, err := embed.New(probeCtx, cfg)
	if err != nil {
		if brewerrors.GetCategory(err) == brewerrors.CategoryConfig {
			info.EmbedderStatus = "error"
		} else {
			info.EmbedderStatus = "offline"
		}
		return
	}
	defer func() { _ = embedder.Close() }()

	info.EmbedderModel = embedder.ModelName()
	if embedder.Available(probeCtx) {
		info.EmbedderStatus = "ready"
	} else {
		info.EmbedderStatus = "offline"
	}
}
