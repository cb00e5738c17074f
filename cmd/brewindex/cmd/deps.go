package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jcascante/brew-master-ai/internal/config"
	"github.com/jcascante/brew-master-ai/internal/logging"
	"github.com/jcascante/brew-master-ai/internal/profile"
	"github.com/jcascante/brew-master-ai/internal/scanner"
	"github.com/jcascante/brew-master-ai/internal/store"
	"github.com/jcascante/brew-master-ai/internal/ui"
)

// resolveProjectDir turns the optional positional argument into an
// absolute project directory, defaulting to the working directory.
func resolveProjectDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project directory: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("project directory %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}

	return abs, nil
}

// loadConfig loads the effective configuration for dir and rebases
// relative paths onto it, so running from any working directory sees
// the same tree as running from the project root. A --config file
// replaces the discovered project layer.
func loadConfig(dir string) (*config.Config, error) {
	cfg, err := config.LoadWithFile(dir, configFile)
	if err != nil {
		return nil, err
	}

	for i := range cfg.Sources {
		cfg.Sources[i].Path = rebasePath(dir, cfg.Sources[i].Path)
	}
	cfg.Store.Path = rebasePath(dir, cfg.Store.Path)
	cfg.Processing.ProfileFile = rebasePath(dir, cfg.Processing.ProfileFile)

	return cfg, nil
}

// rebasePath joins a relative path onto dir. Absolute and empty paths
// pass through.
func rebasePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// setupFileLogging routes slog to the configured log file for the
// duration of a command. With --debug the root hook already installed
// a debug-level logger, and a logging failure never blocks the actual
// work. The returned cleanup is always safe to call.
func setupFileLogging(cfg logging.Config) func() {
	if debugMode {
		return func() {}
	}

	cfg.WriteToStderr = false
	if cfg.FilePath == "" {
		cfg.FilePath = logging.DefaultLogPath()
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
}

// buildRegistry builds the processing profile registry, layering any
// project-level profile overrides on top of the built-ins.
func buildRegistry(cfg *config.Config) (*profile.Registry, error) {
	opts := []profile.Option{profile.WithLogger(slog.Default())}
	if cfg.Processing.ProfileFile != "" {
		opts = append(opts, profile.WithProfileFile(cfg.Processing.ProfileFile))
	}
	return profile.NewRegistry(opts...)
}

// storeTarget returns the identity the run lock is scoped to: the
// server URL for qdrant, the database path for sqlite.
func storeTarget(cfg store.Config) string {
	if cfg.Backend == store.BackendSQLite {
		return cfg.Path
	}
	return cfg.URL
}

// watchExtensions unions the extension filters of every source so the
// filesystem watcher sees the same files the scanner would.
func watchExtensions(sources []scanner.Source) []string {
	seen := make(map[string]struct{})
	var exts []string
	for _, src := range sources {
		list := src.Extensions
		if len(list) == 0 {
			list = scanner.DefaultExtensions
		}
		for _, ext := range list {
			if _, ok := seen[ext]; ok {
				continue
			}
			seen[ext] = struct{}{}
			exts = append(exts, ext)
		}
	}
	return exts
}

// buildRenderer picks a progress renderer for the terminal, honoring
// --no-tui and --no-color.
func buildRenderer(out io.Writer, collection string, noTUI bool) ui.Renderer {
	return ui.NewRenderer(ui.NewConfig(out,
		ui.WithCollection(collection),
		ui.WithForcePlain(noTUI),
		ui.WithNoColor(noColor || ui.DetectNoColor()),
	))
}
