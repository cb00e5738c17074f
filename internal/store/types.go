// Package store persists chunk records in a vector collection. The
// default backend is a Qdrant REST client; a SQLite backend covers
// development and offline runs with the same contract.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Backend names accepted by New.
const (
	BackendQdrant = "qdrant"
	BackendSQLite = "sqlite"
)

// Defaults for the Qdrant backend.
const (
	DefaultURL         = "http://localhost:6333"
	DefaultCollection  = "brewing_knowledge"
	DefaultDistance    = "Cosine"
	DefaultTimeout     = 15 * time.Second
	DefaultScrollLimit = 256
)

// recordNamespace is the UUIDv5 namespace for record IDs. Changing it
// would orphan every existing record, so it is fixed for the life of
// the collection format.
var recordNamespace = uuid.MustParse("5f1aebf4-87a8-4a2e-8e14-1b9dbbd0a6c5")

// PointID returns the deterministic record ID for one chunk of a
// source. The same (identity, index) pair always maps to the same ID,
// which is what lets a reprocessed file overwrite its own records.
func PointID(sourceIdentity string, chunkIndex int) string {
	name := fmt.Sprintf("%s:%d", sourceIdentity, chunkIndex)
	return uuid.NewSHA1(recordNamespace, []byte(name)).String()
}

// Record is one chunk ready for storage: stable ID, embedding vector,
// and the full payload.
type Record struct {
	ID      string
	Source  string // source identity, also present in Payload
	Vector  []float32
	Payload map[string]any
}

// ScrollPoint is the snapshot view of a stored record: ID plus payload,
// no vector.
type ScrollPoint struct {
	ID      string
	Payload map[string]any
}

// VectorStore is the persistence port used by the reconciler.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist.
	// An existing collection is left untouched.
	EnsureCollection(ctx context.Context, dim int) error

	// Scroll returns every stored record's ID and payload. Pagination
	// is handled internally; the result is a complete snapshot.
	Scroll(ctx context.Context) ([]ScrollPoint, error)

	// Upsert writes records, overwriting any with the same ID. The
	// call returns after the write is durable (wait semantics).
	Upsert(ctx context.Context, recs []Record) error

	// Delete removes records by ID. Missing IDs are not an error.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases connections. The store is unusable afterwards.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "qdrant" (default) or "sqlite".
	Backend string `yaml:"backend" json:"backend"`

	// URL is the Qdrant base URL (default http://localhost:6333).
	URL string `yaml:"url" json:"url"`

	// APIKey is sent as the api-key header when set.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection" json:"collection"`

	// Distance is the vector distance metric (default Cosine).
	Distance string `yaml:"distance" json:"distance"`

	// Timeout bounds each store request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// ScrollLimit is the page size used during snapshot scrolls.
	ScrollLimit int `yaml:"scroll_limit" json:"scroll_limit"`

	// Path is the database file for the sqlite backend.
	Path string `yaml:"path" json:"path"`
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendQdrant
	}
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.Distance == "" {
		c.Distance = DefaultDistance
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ScrollLimit <= 0 {
		c.ScrollLimit = DefaultScrollLimit
	}
	return c
}
