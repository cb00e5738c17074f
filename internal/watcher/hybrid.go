package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// HybridWatcher watches source roots with fsnotify and falls back to
// polling when inotify is unavailable. Raw events pass through a
// hidden-name and extension filter and then a debouncer, so consumers
// receive settled batches rather than every intermediate change.
type HybridWatcher struct {
	fsWatcher      *fsnotify.Watcher
	pollWatcher    *PollingWatcher
	useFsnotify    bool
	debouncer      *Debouncer
	events         chan []FileEvent
	errors         chan error
	stopCh         chan struct{}
	roots          []string
	opts           Options
	mu             sync.RWMutex
	stopped        bool
	droppedBatches atomic.Uint64
}

var _ Watcher = (*HybridWatcher)(nil)

// NewHybridWatcher creates a hybrid watcher with the given options.
// It tries fsnotify first and falls back to polling if that fails.
func NewHybridWatcher(opts Options) (*HybridWatcher, error) {
	opts = opts.WithDefaults()

	h := &HybridWatcher{
		debouncer: NewDebouncer(opts.Debounce),
		events:    make(chan []FileEvent, opts.BufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
	}

	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		h.fsWatcher = fsw
		h.useFsnotify = true
	} else {
		h.pollWatcher = NewPollingWatcher(opts.PollInterval)
	}

	return h, nil
}

// Start begins watching every root. It blocks until the context is
// cancelled or Stop is called.
func (h *HybridWatcher) Start(ctx context.Context, roots []string) error {
	abs, err := resolveRoots(roots)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.roots = abs
	h.mu.Unlock()

	go h.forwardBatches(ctx)

	if h.useFsnotify {
		return h.runFsnotify(ctx, abs)
	}
	return h.runPolling(ctx, abs)
}

// runFsnotify registers the root trees and consumes raw fsnotify
// events until shutdown.
func (h *HybridWatcher) runFsnotify(ctx context.Context, roots []string) error {
	for _, root := range roots {
		if err := h.watchTree(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = h.Stop()
			return ctx.Err()
		case <-h.stopCh:
			return nil
		case event, ok := <-h.fsWatcher.Events:
			if !ok {
				return nil
			}
			h.handleFsnotifyEvent(event)
		case err, ok := <-h.fsWatcher.Errors:
			if !ok {
				return nil
			}
			h.emitError(err)
		}
	}
}

// runPolling forwards filtered polling events into the debouncer and
// drives the poll loop.
func (h *HybridWatcher) runPolling(ctx context.Context, roots []string) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stopCh:
				return
			case event, ok := <-h.pollWatcher.Events():
				if !ok {
					return
				}
				if h.shouldIgnore(event.Path, event.IsDir) {
					continue
				}
				h.debouncer.Add(event)
			}
		}
	}()

	return h.pollWatcher.Start(ctx, roots)
}

// watchTree registers root and every non-hidden directory below it.
func (h *HybridWatcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hiddenName(d.Name()) {
			return filepath.SkipDir
		}
		return h.fsWatcher.Add(path)
	})
}

// handleFsnotifyEvent converts a raw fsnotify event into a FileEvent
// and feeds it to the debouncer.
func (h *HybridWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	root, rel := h.locate(event.Name)
	if root == "" {
		return
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if h.shouldIgnore(rel, isDir) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		// A new directory needs its own watch before files land in it.
		if isDir {
			_ = h.fsWatcher.Add(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// Chmod and other metadata-only changes never alter content.
		return
	}

	h.debouncer.Add(FileEvent{
		Root:      root,
		Path:      rel,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

// locate maps an absolute path to the watched root it belongs to and
// the path relative to that root. Nested roots resolve to the deepest
// match. Returns empty strings for paths outside every root.
func (h *HybridWatcher) locate(path string) (string, string) {
	h.mu.RLock()
	roots := h.roots
	h.mu.RUnlock()

	best := ""
	for _, root := range roots {
		if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
			continue
		}
		if len(root) > len(best) {
			best = root
		}
	}
	if best == "" {
		return "", ""
	}

	rel, err := filepath.Rel(best, path)
	if err != nil {
		return "", ""
	}
	return best, rel
}

// shouldIgnore filters events the reconciler would never act on:
// hidden entries anywhere in the path, and files outside the watched
// extension set. Directories pass the extension check because they may
// hold matching files.
func (h *HybridWatcher) shouldIgnore(rel string, isDir bool) bool {
	if rel == "" || rel == "." {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if hiddenName(part) {
			return true
		}
	}
	if isDir {
		return false
	}
	return !h.matchesExtensions(filepath.Base(rel))
}

// matchesExtensions checks a filename against the configured suffix
// list, case-insensitively. An empty list admits every file.
func (h *HybridWatcher) matchesExtensions(name string) bool {
	if len(h.opts.Extensions) == 0 {
		return true
	}
	lower := strings.ToLower(name)
	for _, ext := range h.opts.Extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// forwardBatches relays settled batches from the debouncer to the
// public events channel.
func (h *HybridWatcher) forwardBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case batch, ok := <-h.debouncer.Output():
			if !ok {
				return
			}
			if len(batch) == 0 {
				continue
			}
			h.emitEvents(batch)
		}
	}
}

// emitEvents sends a batch without blocking. The read lock is held
// across the send so Stop cannot close the channel mid-send.
func (h *HybridWatcher) emitEvents(batch []FileEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.stopped {
		return
	}

	select {
	case h.events <- batch:
	default:
		dropped := h.droppedBatches.Add(1)
		slog.Warn("watch buffer full, dropping batch",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("dropped_batches", dropped),
		)
	}
}

// DroppedBatches returns how many batches were discarded because the
// consumer fell behind.
func (h *HybridWatcher) DroppedBatches() uint64 {
	return h.droppedBatches.Load()
}

// emitError sends an error without blocking.
func (h *HybridWatcher) emitError(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.stopped {
		return
	}

	select {
	case h.errors <- err:
	default:
	}
}

// Stop stops the watcher and releases resources.
// Safe to call multiple times.
func (h *HybridWatcher) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil
	}

	h.stopped = true
	close(h.stopCh)

	h.debouncer.Stop()

	if h.fsWatcher != nil {
		_ = h.fsWatcher.Close()
	}
	if h.pollWatcher != nil {
		_ = h.pollWatcher.Stop()
	}

	close(h.events)
	close(h.errors)
	return nil
}

// Events returns the channel of debounced event batches.
func (h *HybridWatcher) Events() <-chan []FileEvent {
	return h.events
}

// Errors returns the channel of watcher errors.
func (h *HybridWatcher) Errors() <-chan error {
	return h.errors
}

// IsHealthy reports whether the watcher is still running.
func (h *HybridWatcher) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.stopped
}

// Mode reports which mechanism is active, "fsnotify" or "polling".
func (h *HybridWatcher) Mode() string {
	if h.useFsnotify {
		return "fsnotify"
	}
	return "polling"
}

// Roots returns the absolute roots being watched.
func (h *HybridWatcher) Roots() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.roots
}

// hiddenName reports whether a file or directory name is dot-prefixed.
// The scanner never indexes hidden entries, so changes to them cannot
// affect the collection.
func hiddenName(name string) bool {
	return strings.HasPrefix(name, ".")
}
