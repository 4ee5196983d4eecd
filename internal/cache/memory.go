package cache

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/hyperjump/shirabe/internal/models"
)

// MemoryCache is an in-memory Cache with the same semantics as SQLiteCache.
// Used in tests; FailPuts and FailGets inject storage failures.
type MemoryCache struct {
	mu      sync.RWMutex
	records map[string]*models.VectorRecord

	// FailPuts, when set, is returned from every Put.
	FailPuts error
	// FailGets, when true, makes Get behave as a degraded read (miss).
	FailGets bool
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{records: make(map[string]*models.VectorRecord)}
}

// Get returns the record iff present and its digest equals currentDigest.
func (c *MemoryCache) Get(ctx context.Context, docID string, currentDigest []byte) (*models.VectorRecord, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.FailGets {
		return nil, false, nil
	}
	rec, ok := c.records[docID]
	if !ok || !bytes.Equal(rec.ContentHash, currentDigest) {
		return nil, false, nil
	}
	return copyRecord(rec), true, nil
}

// Put upserts the record, or fails with FailPuts when set.
func (c *MemoryCache) Put(ctx context.Context, rec *models.VectorRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailPuts != nil {
		return c.FailPuts
	}
	stored := copyRecord(rec)
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	c.records[rec.DocID] = stored
	return nil
}

// ForEachValid visits records whose digest matches the current digest from digestOf.
func (c *MemoryCache) ForEachValid(ctx context.Context, digestOf func(docID string) ([]byte, bool), fn func(*models.VectorRecord) error) error {
	c.mu.RLock()
	recs := make([]*models.VectorRecord, 0, len(c.records))
	for _, rec := range c.records {
		recs = append(recs, copyRecord(rec))
	}
	c.mu.RUnlock()

	for _, rec := range recs {
		current, ok := digestOf(rec.DocID)
		if !ok || !bytes.Equal(current, rec.ContentHash) {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// LastDigest reports the stored digest for docID.
func (c *MemoryCache) LastDigest(ctx context.Context, docID string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[docID]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), rec.ContentHash...), true, nil
}

// Delete removes the record for docID.
func (c *MemoryCache) Delete(ctx context.Context, docID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, docID)
	return nil
}

// Count returns the number of records.
func (c *MemoryCache) Count(ctx context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.records)), nil
}

// Close is a no-op for MemoryCache.
func (c *MemoryCache) Close() error {
	return nil
}

func copyRecord(rec *models.VectorRecord) *models.VectorRecord {
	out := &models.VectorRecord{
		DocID:       rec.DocID,
		Vector:      append([]float32(nil), rec.Vector...),
		ContentHash: append([]byte(nil), rec.ContentHash...),
		UpdatedAt:   rec.UpdatedAt,
	}
	return out
}
