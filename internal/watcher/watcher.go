package watcher

import (
	"context"
	"time"
)

// Operation classifies a filesystem change observed under a source root.
type Operation int

const (
	// OpCreate indicates a new file or directory appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing file was rewritten.
	OpModify
	// OpDelete indicates a file or directory was removed.
	OpDelete
	// OpRename indicates a file or directory was renamed.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed change under a watched source root.
type FileEvent struct {
	// Root is the absolute source root the change was seen under.
	Root string

	// Path is relative to Root, using the platform separator.
	Path string

	// Operation is the kind of change.
	Operation Operation

	// IsDir indicates the event is for a directory.
	IsDir bool

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Watcher watches source roots and delivers settled batches of change
// events.
type Watcher interface {
	// Start begins watching every root recursively. It blocks until the
	// context is cancelled or Stop is called, and returns an error if
	// watching fails to initialize.
	Start(ctx context.Context, roots []string) error

	// Stop stops the watcher and releases resources.
	// Safe to call multiple times.
	Stop() error

	// Events returns the channel of debounced event batches.
	// The channel is closed when the watcher stops.
	Events() <-chan []FileEvent

	// Errors returns the channel of watcher errors. Non-fatal errors
	// are sent here while the watcher keeps running.
	// The channel is closed when the watcher stops.
	Errors() <-chan error
}

// Options configures watch behavior.
type Options struct {
	// Debounce is how long a burst of events must settle before a
	// batch is emitted.
	// Default: 2s
	Debounce time.Duration

	// PollInterval is the rescan period for the polling fallback.
	// Default: 30s
	PollInterval time.Duration

	// BufferSize is the capacity of the batch channel.
	// Default: 256
	BufferSize int

	// Extensions restricts file events to names with these suffixes,
	// matched case-insensitively. Empty means every file. Directory
	// events always pass.
	Extensions []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		Debounce:     2 * time.Second,
		PollInterval: 30 * time.Second,
		BufferSize:   256,
		Extensions:   nil,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.Debounce == 0 {
		o.Debounce = defaults.Debounce
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.BufferSize == 0 {
		o.BufferSize = defaults.BufferSize
	}
	return o
}
