package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
)

// deleteBatchSize keeps DELETE ... IN (...) under SQLite's bound
// parameter limit.
const deleteBatchSize = 500

// SQLiteStore implements VectorStore on a single-file database. It is
// the development and offline backend; vectors are stored but never
// searched.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

var _ VectorStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at cfg.Path.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, brewerrors.New(brewerrors.ErrCodeCollectionFailed,
			"sqlite backend requires a database path", nil)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, brewerrors.New(brewerrors.ErrCodeCollectionFailed,
			fmt.Sprintf("failed to create database directory for %s", cfg.Path), err)
	}

	dsn := cfg.Path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, brewerrors.New(brewerrors.ErrCodeCollectionFailed,
			fmt.Sprintf("failed to open database %s", cfg.Path), err)
	}

	// Single writer avoids lock contention with WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite; set the pragmas
	// explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, brewerrors.New(brewerrors.ErrCodeCollectionFailed,
				"failed to set pragma", err)
		}
	}

	return &SQLiteStore{db: db, path: cfg.Path}, nil
}

// EnsureCollection creates the schema and records the vector dimension.
// Reopening with a different dimension is an error: the stored vectors
// would be unusable.
func (s *SQLiteStore) EnsureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if dim <= 0 {
		return brewerrors.New(brewerrors.ErrCodeCollectionFailed,
			fmt.Sprintf("invalid vector dimension %d", dim), nil)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		id      TEXT PRIMARY KEY,
		source  TEXT NOT NULL,
		vector  BLOB NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_source ON records(source);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return brewerrors.New(brewerrors.ErrCodeCollectionFailed,
			"failed to initialize schema", err)
	}

	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = 'dimension'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES ('dimension', ?)`,
			fmt.Sprintf("%d", dim))
		if err != nil {
			return brewerrors.New(brewerrors.ErrCodeCollectionFailed,
				"failed to record vector dimension", err)
		}
		return nil
	case err != nil:
		return brewerrors.New(brewerrors.ErrCodeCollectionFailed,
			"failed to read vector dimension", err)
	}

	if stored != fmt.Sprintf("%d", dim) {
		return brewerrors.New(brewerrors.ErrCodeCollectionFailed,
			fmt.Sprintf("dimension mismatch: database has %s, embedder produces %d", stored, dim), nil)
	}
	return nil
}

// Scroll returns every record's ID and payload ordered by ID. A
// missing schema is an empty result so dry runs work before the
// first write.
func (s *SQLiteStore) Scroll(ctx context.Context) ([]ScrollPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpenLocked(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload FROM records ORDER BY id`)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, nil
		}
		return nil, brewerrors.New(brewerrors.ErrCodeStoreRequest,
			"failed to scroll records", err)
	}
	defer func() { _ = rows.Close() }()

	var points []ScrollPoint
	for rows.Next() {
		var id, payloadJSON string
		if err := rows.Scan(&id, &payloadJSON); err != nil {
			return nil, brewerrors.New(brewerrors.ErrCodeStoreRequest,
				"failed to scan record", err)
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, brewerrors.New(brewerrors.ErrCodeStoreRequest,
				fmt.Sprintf("corrupt payload for record %s", id), err)
		}
		points = append(points, ScrollPoint{ID: id, Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, brewerrors.New(brewerrors.ErrCodeStoreRequest,
			"scroll interrupted", err)
	}
	return points, nil
}

// Upsert writes records in one transaction, replacing rows that share
// an ID.
func (s *SQLiteStore) Upsert(ctx context.Context, recs []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return brewerrors.New(brewerrors.ErrCodeStoreRequest,
			"failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, source, vector, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source  = excluded.source,
			vector  = excluded.vector,
			payload = excluded.payload`)
	if err != nil {
		return brewerrors.New(brewerrors.ErrCodeStoreRequest,
			"failed to prepare upsert", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range recs {
		payloadJSON, err := json.Marshal(r.Payload)
		if err != nil {
			return brewerrors.New(brewerrors.ErrCodeStoreRequest,
				fmt.Sprintf("failed to encode payload for %s", r.ID), err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Source,
			encodeVector(r.Vector), string(payloadJSON)); err != nil {
			return brewerrors.New(brewerrors.ErrCodeStoreRequest,
				fmt.Sprintf("failed to upsert record %s", r.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return brewerrors.New(brewerrors.ErrCodeStoreRequest,
			"failed to commit upsert", err)
	}
	return nil
}

// Delete removes records by ID, batched under the bound parameter
// limit. Missing IDs are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))
		batch := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		query := fmt.Sprintf(`DELETE FROM records WHERE id IN (%s)`, placeholders)
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return brewerrors.New(brewerrors.ErrCodeStoreRequest,
				"failed to delete records", err)
		}
	}
	return nil
}

// Count returns the number of stored records. A database without the
// schema yet counts as zero.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpenLocked(); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, brewerrors.New(brewerrors.ErrCodeStoreRequest,
			"failed to count records", err)
	}
	return count, nil
}

// Close closes the database. Subsequent calls fail.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) checkOpenLocked() error {
	if s.closed {
		return brewerrors.New(brewerrors.ErrCodeStoreRequest, "store is closed", nil)
	}
	return nil
}

// encodeVector packs float32 values little-endian.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks a little-endian float32 blob.
func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
