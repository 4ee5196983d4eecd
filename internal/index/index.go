// Package index provides an exact in-memory similarity index over
// unit-normalized vectors. The index is a projection of the vector cache's
// valid set: it holds (doc_id, normalized vector) pairs, never vector
// authority, and is rebuilt or incrementally patched as the valid set changes.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/pkg/utils"
)

var (
	// ErrInvalidK is returned when a query asks for fewer than one result.
	ErrInvalidK = errors.New("k must be at least 1")
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrZeroVector is returned when a vector has zero L2 norm and cannot
	// be normalized.
	ErrZeroVector = errors.New("zero vector cannot be normalized")
)

// checkEvery is how many entries a query scans between cancellation checks.
const checkEvery = 1024

type entry struct {
	docID  string
	vector []float32 // unit L2 norm
}

// Hit is a single query hit: inner product against the normalized query,
// which equals cosine similarity.
type Hit struct {
	DocID string
	Score float64
}

// Index is an exact top-k similarity index. Queries proceed concurrently;
// every mutation builds a fresh entry slice and swaps it in under the write
// lock, so a reader never observes a partially updated index.
type Index struct {
	dimensions int
	logger     *zap.Logger // optional; when set, logs excluded entries

	mu      sync.RWMutex
	entries []entry
	byID    map[string]int
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets a logger for per-record exclusion warnings during Build.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Index) { idx.logger = l }
}

// New creates an empty index for vectors of the given dimension.
func New(dimensions int, opts ...Option) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	idx := &Index{
		dimensions: dimensions,
		byID:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Build replaces the index contents with the given records. Each vector is
// normalized to unit L2 norm. Records with a wrong dimension or a zero norm
// are excluded with a warning rather than aborting the whole build. The new
// contents become visible atomically.
func (idx *Index) Build(records []*models.VectorRecord) {
	entries := make([]entry, 0, len(records))
	byID := make(map[string]int, len(records))
	for _, rec := range records {
		vec, err := idx.normalize(rec.Vector)
		if err != nil {
			if idx.logger != nil {
				idx.logger.Warn("excluding record from index",
					zap.String("doc_id", rec.DocID), zap.Error(err))
			}
			continue
		}
		byID[rec.DocID] = len(entries)
		entries = append(entries, entry{docID: rec.DocID, vector: vec})
	}

	idx.mu.Lock()
	idx.entries = entries
	idx.byID = byID
	idx.mu.Unlock()
}

// Upsert adds or replaces a single entry. The mutation is copy-and-swap:
// concurrent queries keep reading the previous entry slice until the swap.
func (idx *Index) Upsert(docID string, vector []float32) error {
	vec, err := idx.normalize(vector)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if i, ok := idx.byID[docID]; ok {
		entries := make([]entry, len(idx.entries))
		copy(entries, idx.entries)
		entries[i] = entry{docID: docID, vector: vec}
		idx.entries = entries
		return nil
	}
	entries := make([]entry, len(idx.entries), len(idx.entries)+1)
	copy(entries, idx.entries)
	entries = append(entries, entry{docID: docID, vector: vec})
	byID := make(map[string]int, len(idx.byID)+1)
	for id, i := range idx.byID {
		byID[id] = i
	}
	byID[docID] = len(entries) - 1
	idx.entries = entries
	idx.byID = byID
	return nil
}

// Remove drops the entry for docID if present.
func (idx *Index) Remove(docID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.byID[docID]; !ok {
		return
	}
	entries := make([]entry, 0, len(idx.entries)-1)
	byID := make(map[string]int, len(idx.entries)-1)
	for _, e := range idx.entries {
		if e.docID == docID {
			continue
		}
		byID[e.docID] = len(entries)
		entries = append(entries, e)
	}
	idx.entries = entries
	idx.byID = byID
}

// Query normalizes the query vector and returns the k highest-scoring entries
// by inner product, exact and deterministic: score descending, doc_id
// ascending on equal scores. k larger than the index returns all entries.
// Queries never mutate the index, so cancellation cannot corrupt state.
func (idx *Index) Query(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidK, k)
	}
	vec, err := idx.normalize(query)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	entries := idx.entries
	idx.mu.RUnlock()

	hits := make([]Hit, len(entries))
	for i, e := range entries {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		hits[i] = Hit{DocID: e.docID, Score: utils.Dot(vec, e.vector)}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Size returns the number of indexed entries.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Dimensions returns the configured vector dimension.
func (idx *Index) Dimensions() int {
	return idx.dimensions
}

// Contains reports whether docID is indexed.
func (idx *Index) Contains(docID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.byID[docID]
	return ok
}

func (idx *Index) normalize(vector []float32) ([]float32, error) {
	if len(vector) != idx.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vector), idx.dimensions)
	}
	vec, norm := utils.NormalizeL2(vector)
	if norm == 0 {
		return nil, ErrZeroVector
	}
	return vec, nil
}
