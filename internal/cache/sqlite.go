package cache

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/models"
)

// SQLiteCache implements Cache using SQLite. Records survive process restart
// once Put has returned.
type SQLiteCache struct {
	db     *sql.DB
	logger *zap.Logger // optional; when set, logs degraded reads
}

// SQLiteCacheOption configures a SQLiteCache.
type SQLiteCacheOption func(*SQLiteCache)

// WithLogger sets a logger for degraded-read warnings.
func WithLogger(l *zap.Logger) SQLiteCacheOption {
	return func(c *SQLiteCache) { c.logger = l }
}

// NewSQLiteCache opens or creates the cache database at dbPath and
// initializes the schema. Parent directories are created if they do not exist.
func NewSQLiteCache(dbPath string, opts ...SQLiteCacheOption) (*SQLiteCache, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS embeddings (
		doc_id TEXT PRIMARY KEY,
		vector BLOB NOT NULL,
		digest BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	c := &SQLiteCache{db: db}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached record iff its stored digest equals currentDigest.
// Read failures degrade to a miss so the caller regenerates instead of failing.
func (c *SQLiteCache) Get(ctx context.Context, docID string, currentDigest []byte) (*models.VectorRecord, bool, error) {
	var (
		blob      []byte
		digest    []byte
		updatedAt time.Time
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT vector, digest, updated_at FROM embeddings WHERE doc_id = ?`, docID,
	).Scan(&blob, &digest, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("cache read failed, treating as miss", zap.String("doc_id", docID), zap.Error(err))
		}
		return nil, false, nil
	}
	if !bytes.Equal(digest, currentDigest) {
		return nil, false, nil
	}
	vec, err := decodeVector(blob)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("cache record corrupt, treating as miss", zap.String("doc_id", docID), zap.Error(err))
		}
		return nil, false, nil
	}
	return &models.VectorRecord{
		DocID:       docID,
		Vector:      vec,
		ContentHash: digest,
		UpdatedAt:   updatedAt,
	}, true, nil
}

// Put upserts the record. INSERT OR REPLACE makes the vector and its digest
// a single atomic write, so the recorded fingerprint can never diverge from
// the stored vector after a partial failure.
func (c *SQLiteCache) Put(ctx context.Context, rec *models.VectorRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embeddings (doc_id, vector, digest, updated_at)
		 VALUES (?, ?, ?, ?)`,
		rec.DocID, encodeVector(rec.Vector), rec.ContentHash, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("cache write failed for %s: %w", rec.DocID, err)
	}
	return nil
}

// ForEachValid streams records whose stored digest matches the current digest
// reported by digestOf. Rows are read from a cursor, so the full set is never
// materialized.
func (c *SQLiteCache) ForEachValid(ctx context.Context, digestOf func(docID string) ([]byte, bool), fn func(*models.VectorRecord) error) error {
	rows, err := c.db.QueryContext(ctx,
		`SELECT doc_id, vector, digest, updated_at FROM embeddings`)
	if err != nil {
		return fmt.Errorf("cache scan failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			docID     string
			blob      []byte
			digest    []byte
			updatedAt time.Time
		)
		if err := rows.Scan(&docID, &blob, &digest, &updatedAt); err != nil {
			return fmt.Errorf("cache scan row failed: %w", err)
		}
		current, ok := digestOf(docID)
		if !ok || !bytes.Equal(current, digest) {
			continue
		}
		vec, err := decodeVector(blob)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("skipping corrupt cache record", zap.String("doc_id", docID), zap.Error(err))
			}
			continue
		}
		rec := &models.VectorRecord{
			DocID:       docID,
			Vector:      vec,
			ContentHash: digest,
			UpdatedAt:   updatedAt,
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LastDigest reports the digest stored with docID's record.
func (c *SQLiteCache) LastDigest(ctx context.Context, docID string) ([]byte, bool, error) {
	var digest []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT digest FROM embeddings WHERE doc_id = ?`, docID,
	).Scan(&digest)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return digest, true, nil
}

// Delete removes the record for docID.
func (c *SQLiteCache) Delete(ctx context.Context, docID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM embeddings WHERE doc_id = ?`, docID)
	return err
}

// Count returns the total number of cached records.
func (c *SQLiteCache) Count(ctx context.Context) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
