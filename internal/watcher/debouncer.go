package watcher

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// Debouncer coalesces bursts of file events so one editor save or one
// batch copy triggers a single reconcile pass instead of several.
// Events for the same file within the window merge as:
//
//	CREATE then MODIFY -> CREATE (still a new file)
//	CREATE then DELETE -> dropped (never really existed)
//	MODIFY then DELETE -> DELETE (file is gone)
//	DELETE then CREATE -> MODIFY (file was replaced)
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingChange
	timer   *time.Timer
	output  chan []FileEvent
	stopped bool
}

// pendingChange remembers the first operation seen for a file so later
// events in the same burst merge against it.
type pendingChange struct {
	event   FileEvent
	firstOp Operation
}

// NewDebouncer creates a debouncer with the given settle window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingChange),
		output:  make(chan []FileEvent, 10),
	}
}

// Add records an event, merging it with any pending event for the same
// file. The flush timer restarts on every add, so a burst settles
// before anything is emitted.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	// Keyed by the full path: the same relative path under two source
	// roots is two different files and must not coalesce.
	key := filepath.Join(event.Root, event.Path)
	if prev, ok := d.pending[key]; ok {
		merged, drop := merge(prev.firstOp, event)
		if drop {
			delete(d.pending, key)
		} else {
			prev.event = merged
		}
	} else {
		d.pending[key] = &pendingChange{event: event, firstOp: event.Operation}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// merge folds the next event into a pending one whose first operation
// was firstOp. The second return is true when the pair cancels out.
func merge(firstOp Operation, next FileEvent) (FileEvent, bool) {
	switch firstOp {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			next.Operation = OpCreate
			return next, false
		case OpDelete:
			return FileEvent{}, true
		}
	case OpDelete:
		if next.Operation == OpCreate {
			next.Operation = OpModify
			return next, false
		}
	}
	return next, false
}

// flush emits everything pending as one batch.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, pc := range d.pending {
		batch = append(batch, pc.event)
	}
	d.pending = make(map[string]*pendingChange)

	select {
	case d.output <- batch:
	default:
		slog.Warn("debounce output full, dropping batch",
			slog.Int("batch_size", len(batch)),
		)
	}
}

// Output returns the channel of settled event batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop discards pending events and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
