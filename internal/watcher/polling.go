package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects changes by rescanning the source roots on an
// interval and diffing against the previous pass. It is the fallback
// for filesystems where inotify does not work, such as network mounts
// and some container volumes.
type PollingWatcher struct {
	interval time.Duration
	roots    []string
	seen     map[string]fileState
	events   chan FileEvent
	stopCh   chan struct{}
	mu       sync.Mutex
	stopped  bool
}

// fileState is the per-path fingerprint compared between scans.
type fileState struct {
	root    string
	rel     string
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a polling watcher with the given interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	if interval <= 0 {
		interval = DefaultOptions().PollInterval
	}
	return &PollingWatcher{
		interval: interval,
		seen:     make(map[string]fileState),
		events:   make(chan FileEvent, 100),
		stopCh:   make(chan struct{}),
	}
}

// Start establishes a baseline for every root, then rescans on each
// tick and emits the differences. It blocks until the context is done
// or Stop is called.
func (p *PollingWatcher) Start(ctx context.Context, roots []string) error {
	abs, err := resolveRoots(roots)
	if err != nil {
		return err
	}
	p.roots = abs

	p.mu.Lock()
	p.seen = p.snapshot()
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.diff()
		}
	}
}

// Stop stops the polling watcher and closes its event channel.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}

	p.stopped = true
	close(p.stopCh)
	close(p.events)
	return nil
}

// Events returns the channel of raw file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// snapshot walks every root and fingerprints what is on disk now.
// Entries that cannot be read are skipped; a root that has vanished
// simply contributes nothing, which the diff reports as deletions.
func (p *PollingWatcher) snapshot() map[string]fileState {
	current := make(map[string]fileState)
	for _, root := range p.roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil || rel == "." {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			current[path] = fileState{
				root:    root,
				rel:     rel,
				modTime: info.ModTime(),
				size:    info.Size(),
				isDir:   d.IsDir(),
			}
			return nil
		})
	}
	return current
}

// diff compares the latest snapshot against the previous one and emits
// create, modify, and delete events for the differences.
func (p *PollingWatcher) diff() {
	current := p.snapshot()

	p.mu.Lock()
	defer p.mu.Unlock()

	for path, state := range current {
		prev, ok := p.seen[path]
		switch {
		case !ok:
			p.emit(FileEvent{
				Root:      state.root,
				Path:      state.rel,
				Operation: OpCreate,
				IsDir:     state.isDir,
				Timestamp: time.Now(),
			})
		case prev.modTime != state.modTime || prev.size != state.size:
			p.emit(FileEvent{
				Root:      state.root,
				Path:      state.rel,
				Operation: OpModify,
				IsDir:     state.isDir,
				Timestamp: time.Now(),
			})
		}
	}

	for path, state := range p.seen {
		if _, ok := current[path]; !ok {
			p.emit(FileEvent{
				Root:      state.root,
				Path:      state.rel,
				Operation: OpDelete,
				IsDir:     state.isDir,
				Timestamp: time.Now(),
			})
		}
	}

	p.seen = current
}

// emit sends an event without blocking. Must be called with the lock
// held.
func (p *PollingWatcher) emit(event FileEvent) {
	if p.stopped {
		return
	}

	select {
	case p.events <- event:
	default:
		slog.Warn("poll event buffer full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()),
		)
	}
}

// resolveRoots turns the root list into absolute paths and verifies
// each names an existing directory.
func resolveRoots(roots []string) ([]string, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("no roots to watch")
	}

	abs := make([]string, 0, len(roots))
	for _, root := range roots {
		a, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve root %s: %w", root, err)
		}
		info, err := os.Stat(a)
		if err != nil {
			return nil, fmt.Errorf("stat root %s: %w", a, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("root is not a directory: %s", a)
		}
		abs = append(abs, a)
	}
	return abs, nil
}
