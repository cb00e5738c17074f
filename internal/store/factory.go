package store

import (
	"fmt"

	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
)

// New creates the configured backend.
func New(cfg Config) (VectorStore, error) {
	cfg = cfg.withDefaults()

	switch cfg.Backend {
	case BackendQdrant:
		return NewQdrantStore(cfg), nil
	case BackendSQLite:
		return NewSQLiteStore(cfg)
	default:
		return nil, brewerrors.New(brewerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown store backend %q (want %s or %s)",
				cfg.Backend, BackendQdrant, BackendSQLite), nil)
	}
}
