package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {
	var (
		dryRun     bool
		noTUI      bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup [path]",
		Short: "Delete records for files no longer on disk",
		Long: `Cleanup runs only the orphan phase of reconciliation: it lists the
indexed source files, checks each against the filesystem, and deletes
every record belonging to files that are gone.

Nothing is scanned, validated, or embedded. Use --dry-run to see which
files would be removed first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runReconcile(ctx, cmd, args, reconcileFlags{
				dryRun:      dryRun,
				orphansOnly: true,
				noTUI:       noTUI,
				jsonOutput:  jsonOutput,
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report orphans without deleting them")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run summary as JSON")

	return cmd
}
