// Package cmd provides the CLI commands for brewindex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
	"github.com/jcascante/brew-master-ai/internal/logging"
	"github.com/jcascante/brew-master-ai/internal/profiling"
	"github.com/jcascante/brew-master-ai/pkg/version"
)

// Profiling flags
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// Global output and logging flags
var (
	configFile     string
	debugMode      bool
	noColor        bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the brewindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brewindex",
		Short: "Incremental indexer for the brewing knowledge base",
		Long: `Brewindex keeps a vector collection in sync with a corpus of brewing
documents: video transcripts, OCR text from presentations, and
hand-written notes.

Each run compares what is indexed against what is on disk, removes
records for deleted files, and validates, chunks, enriches, and embeds
files that are new or whose processing profile changed. Unchanged
files are skipped, so repeat runs are cheap.

Run 'brewindex reconcile' in your project directory to get started.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("brewindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file to use instead of the project brewindex.yaml")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to the brewindex log directory")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	// Profiling flags
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	// Runtime errors are reported once by Execute, without usage spam.
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.AddCommand(newReconcileCmd())
	cmd.AddCommand(newCleanupCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging loads the environment, starts debug logging,
// and starts CPU/trace profiling if the flags are set.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	// Secrets like the store API key usually live in a .env file next
	// to the project. A missing file is fine.
	_ = godotenv.Load()

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	var err error
	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}

	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
	}

	return nil
}

// stopProfilingAndLogging stops profiling and logging, and writes the
// memory profile if requested.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}

	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}

	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}

	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}

	return nil
}

// Execute runs the root command. Errors are printed to stderr in the
// CLI format and returned so main can map them to exit codes.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprint(os.Stderr, brewerrors.FormatForCLI(err))
		return err
	}
	return nil
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
