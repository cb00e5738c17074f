// Package runlock guards a collection with a cross-process lease so
// two reconcile runs never interleave writes.
package runlock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
)

// Lock is a file-based lease tied to one store target. The lease is
// advisory and process-scoped: the OS drops it when the holder exits,
// so a crashed run never leaves a stale lease behind.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New creates a lease for the given store target. Runs against
// different collections get different lease files and proceed in
// parallel. An empty dir falls back to the user cache dir, then the
// system temp dir.
func New(dir, storeURL, collection string) *Lock {
	if dir == "" {
		dir = defaultDir()
	}
	path := filepath.Join(dir, leaseName(storeURL, collection))
	return &Lock{path: path, flock: flock.New(path)}
}

// Acquire takes the lease without blocking. A lease held by another
// process is fatal: the caller should exit rather than queue behind an
// unknown amount of work.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return brewerrors.New(brewerrors.ErrCodeInternal,
			fmt.Sprintf("failed to create lock directory for %s", l.path), err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return brewerrors.New(brewerrors.ErrCodeInternal,
			fmt.Sprintf("failed to acquire run lease %s", l.path), err)
	}
	if !acquired {
		return brewerrors.New(brewerrors.ErrCodeLeaseHeld,
			"another run holds the lease for this collection", nil).
			WithDetail("lease", l.path).
			WithSuggestion("wait for the other run to finish, or check for a stuck process")
	}

	l.locked = true
	return nil
}

// Release drops the lease. Safe to call twice or without Acquire.
func (l *Lock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return brewerrors.New(brewerrors.ErrCodeInternal,
			fmt.Sprintf("failed to release run lease %s", l.path), err)
	}
	return nil
}

// Held reports whether this process holds the lease.
func (l *Lock) Held() bool {
	return l.locked
}

// Path returns the lease file path.
func (l *Lock) Path() string {
	return l.path
}

// leaseName derives a stable file name from the store target so every
// run against the same collection contends on the same lease.
func leaseName(storeURL, collection string) string {
	sum := sha256.Sum256([]byte(storeURL + "\x00" + collection))
	return fmt.Sprintf("reconcile-%s.lock", hex.EncodeToString(sum[:8]))
}

func defaultDir() string {
	if cache, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cache, "brew-master-ai", "locks")
	}
	return filepath.Join(os.TempDir(), "brew-master-ai-locks")
}
