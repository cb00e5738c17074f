package preflight

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jcascante/brew-master-ai/internal/config"
	"github.com/jcascante/brew-master-ai/internal/store"
)

func TestChecker_CheckStore_SQLite(t *testing.T) {
	// Given: a sqlite backend in a writable directory
	cfg := config.NewConfig()
	cfg.Store.Backend = store.BackendSQLite
	cfg.Store.Path = filepath.Join(t.TempDir(), "index.db")
	cfg.Store.Collection = "brewing_test"

	// When: checking the store
	result := New(cfg).CheckStore(context.Background())

	// Then: passes with an empty collection
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "store", result.Name)
	assert.True(t, result.Required)
	assert.Contains(t, result.Message, "sqlite reachable")
	assert.Contains(t, result.Message, "0 records")
}

func TestChecker_CheckStore_QdrantUnreachable(t *testing.T) {
	// Given: a qdrant backend nothing listens on
	cfg := config.NewConfig()
	cfg.Store.Backend = store.BackendQdrant
	cfg.Store.URL = "http://127.0.0.1:1"
	cfg.Store.Collection = "brewing_test"

	// When: checking the store
	result := New(cfg).CheckStore(context.Background())

	// Then: fails with a hint
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "cannot reach qdrant")
	assert.Contains(t, result.Details, "sqlite")
}
