package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jcascante/brew-master-ai/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		follow  bool
		lines   int
		level   string
		filter  string
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View brewindex logs",
		Long: `View and tail the brewindex log file.

Every run logs to ~/.brewindex/logs/brewindex.log. By default the last
50 lines are shown; use -f to follow new entries in real time.`,
		Example: `  # Show the last 50 lines
  brewindex logs

  # Follow in real time
  brewindex logs -f

  # Only errors
  brewindex logs --level error

  # Lines mentioning one file
  brewindex logs --filter "ipa-recipe"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, logsOptions{
				follow:  follow,
				lines:   lines,
				level:   level,
				filter:  filter,
				logFile: logFile,
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&level, "level", "", "Minimum log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&filter, "filter", "", "Keep only lines matching this regex")
	cmd.Flags().StringVar(&logFile, "file", "", "Path to a log file (default the brewindex log)")

	return cmd
}

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	logFile string
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	path, err := logging.FindLogFile(opts.logFile)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: noColor,
	}, cmd.OutOrStdout())

	// Header goes to stderr so the log lines themselves stay pipeable.
	fmt.Fprintf(cmd.ErrOrStderr(), "Log file: %s\n", path)
	if opts.follow {
		fmt.Fprintln(cmd.ErrOrStderr(), "Following... (Ctrl+C to stop)")
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "---")

	if opts.follow {
		return runLogsFollow(cmd, viewer, path)
	}

	entries, err := viewer.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)
	return nil
}

func runLogsFollow(cmd *cobra.Command, viewer *logging.Viewer, path string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)

	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case entry := <-entries:
			fmt.Fprintln(cmd.OutOrStdout(), viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			fmt.Fprintln(cmd.ErrOrStderr(), "\n---")
			fmt.Fprintln(cmd.ErrOrStderr(), "Stopped.")
			return nil
		}
	}
}
