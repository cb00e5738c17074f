package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
)

// scanBuffer is the result channel capacity. Discovery is cheap relative
// to processing, so a modest buffer keeps the walker ahead of the
// reconcile loop without holding a large corpus in memory.
const scanBuffer = 64

// Scanner walks configured sources and streams discovered documents.
type Scanner struct {
	sources     []Source
	maxFileSize int64
	logger      *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithMaxFileSize overrides the oversized-file cutoff.
func WithMaxFileSize(n int64) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// WithLogger sets the logger used for skip and walk diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Scanner over the given sources. Each source must name a
// path; missing directories are tolerated at scan time so a run can
// continue past one bad source.
func New(sources []Source, opts ...Option) (*Scanner, error) {
	if len(sources) == 0 {
		return nil, brewerrors.New(brewerrors.ErrCodeSourceInvalid,
			"no sources configured", nil)
	}
	for i, src := range sources {
		if strings.TrimSpace(src.Path) == "" {
			return nil, brewerrors.New(brewerrors.ErrCodeSourceInvalid,
				fmt.Sprintf("source %d has an empty path", i), nil)
		}
	}

	s := &Scanner{
		sources:     sources,
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Scan streams document metadata from every configured source. The
// channel is closed when all sources have been walked. A source that
// cannot be walked produces one Result with Err set and the scan moves
// on to the next source.
func (s *Scanner) Scan(ctx context.Context) (<-chan Result, error) {
	results := make(chan Result, scanBuffer)

	go func() {
		defer close(results)
		for _, src := range s.sources {
			select {
			case <-ctx.Done():
				return
			default:
			}
			s.scanSource(ctx, src, results)
		}
	}()

	return results, nil
}

// scanSource walks one source root and emits its documents.
func (s *Scanner) scanSource(ctx context.Context, src Source, results chan<- Result) {
	absRoot, err := filepath.Abs(src.Path)
	if err != nil {
		s.emitErr(ctx, results, brewerrors.New(brewerrors.ErrCodeSourceInvalid,
			fmt.Sprintf("failed to resolve source path %s", src.Path), err))
		return
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			// A source directory may legitimately not exist yet
			// (e.g. no transcripts extracted so far).
			s.logger.Warn("source directory missing, skipping",
				slog.String("path", absRoot),
				slog.String("content_type", src.ContentType))
			return
		}
		s.emitErr(ctx, results, brewerrors.New(brewerrors.ErrCodeScanFailed,
			fmt.Sprintf("failed to stat source %s", absRoot), err))
		return
	}
	if !info.IsDir() {
		s.emitErr(ctx, results, brewerrors.New(brewerrors.ErrCodeSourceInvalid,
			fmt.Sprintf("source path is not a directory: %s", absRoot), nil))
		return
	}

	extensions := src.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // Skip entries we can't access
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks are never followed: a link can point outside the
		// source root and break identity stability.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if isHidden(d.Name()) {
			return nil
		}
		if !matchesExtension(d.Name(), extensions) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}

		if fi.Size() > s.maxFileSize {
			s.logger.Debug("skipping oversized file",
				slog.String("path", path),
				slog.Int64("size", fi.Size()),
				slog.Int64("max", s.maxFileSize))
			return nil
		}

		doc := &Document{
			Identity:    filepath.ToSlash(relPath),
			Path:        path,
			Name:        d.Name(),
			ContentType: src.ContentType,
			Size:        fi.Size(),
			ModTime:     fi.ModTime(),
		}

		select {
		case results <- Result{Doc: doc}:
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	})

	if err != nil && err != context.Canceled {
		s.emitErr(ctx, results, brewerrors.New(brewerrors.ErrCodeScanFailed,
			fmt.Sprintf("walk failed for source %s", absRoot), err))
	}
}

// emitErr delivers a walk error unless the scan was cancelled.
func (s *Scanner) emitErr(ctx context.Context, results chan<- Result, err error) {
	select {
	case results <- Result{Err: err}:
	case <-ctx.Done():
	}
}

// isHidden reports whether a file or directory name is dot-prefixed.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// matchesExtension checks the filename against the source's extension
// list, case-insensitively.
func matchesExtension(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
