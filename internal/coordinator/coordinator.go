// Package coordinator orchestrates document indexing: fingerprint check,
// vector cache lookup, regeneration via the external producer, and similarity
// index maintenance. A single document's failure never aborts a pass or
// crashes the process; partial corpus availability is preferred to total
// unavailability.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/shirabe/internal/cache"
	"github.com/hyperjump/shirabe/internal/fingerprint"
	"github.com/hyperjump/shirabe/internal/index"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/producer"
	"github.com/hyperjump/shirabe/internal/storage"
)

const listPageSize = 500

// ErrSyncInFlight is returned when another sync for the same document is
// already running. The caller retries on its next pass; the in-flight sync
// owns the cache and index writes for that document.
var ErrSyncInFlight = errors.New("document sync already in flight")

// Options holds scheduling and retry settings.
type Options struct {
	// Workers bounds how many documents regenerate concurrently.
	Workers int
	// MaxRetries bounds producer retry attempts per document per pass.
	MaxRetries uint64
	// InitialBackoff and MaxBackoff shape the exponential retry interval.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 200 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 5 * time.Second
	}
}

// Coordinator drives per-document state through Unknown, Regenerating,
// UpToDate, and Stale.
type Coordinator struct {
	storage      storage.Storage
	cache        cache.Cache
	fingerprints *fingerprint.Store
	index        *index.Index
	producer     producer.Producer
	opts         Options
	logger       *zap.Logger // optional; when set, logs transitions

	mu       sync.Mutex
	states   map[string]DocState
	inflight map[string]struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets a logger for state transition events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New creates a coordinator with the given dependencies.
func New(
	store storage.Storage,
	vc cache.Cache,
	fp *fingerprint.Store,
	idx *index.Index,
	prod producer.Producer,
	opts Options,
	copts ...Option,
) *Coordinator {
	opts.applyDefaults()
	c := &Coordinator{
		storage:      store,
		cache:        vc,
		fingerprints: fp,
		index:        idx,
		producer:     prod,
		opts:         opts,
		states:       make(map[string]DocState),
		inflight:     make(map[string]struct{}),
	}
	for _, opt := range copts {
		opt(c)
	}
	return c
}

// SyncDocument brings one document up to date: store the text, consult the
// fingerprint store, and either reuse the cached vector or regenerate it.
// The producer is never invoked for an unchanged document.
//
// Returns an error only for the caller's information; the document is left
// in a consistent state (Stale with the previous record retained) either way.
func (c *Coordinator) SyncDocument(ctx context.Context, input *models.DocumentInput) error {
	if input.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if !c.acquire(input.ID) {
		// At most one regeneration per doc_id may run at a time.
		return fmt.Errorf("%w: %s", ErrSyncInFlight, input.ID)
	}
	defer c.release(input.ID)

	digest := fingerprint.Hash(input.Text)
	doc := &models.Document{
		ID:          input.ID,
		Title:       input.Title,
		Text:        input.Text,
		ContentHash: digest,
		Metadata:    input.Metadata,
	}
	if err := c.storage.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	if !c.fingerprints.Changed(ctx, input.ID, digest) {
		rec, ok, err := c.cache.Get(ctx, input.ID, digest)
		if err == nil && ok {
			// Cache hit: reuse the vector, zero producer calls. The index
			// upsert covers the fresh-start case where the cache is warm
			// but the in-memory index is not.
			if err := c.index.Upsert(rec.DocID, rec.Vector); err != nil {
				return c.markStale(input.ID, fmt.Errorf("index update failed: %w", err))
			}
			c.setState(input.ID, StateUpToDate)
			return nil
		}
	}

	return c.regenerate(ctx, input.ID, input.Text, digest)
}

// regenerate runs the producer with bounded exponential backoff, then writes
// cache and index. Any failure retains the previous record for queries and
// flags the document for retry on the next pass.
func (c *Coordinator) regenerate(ctx context.Context, docID, text string, digest []byte) error {
	c.setState(docID, StateRegenerating)
	if c.logger != nil {
		c.logger.Debug("regenerating document vector", zap.String("doc_id", docID))
	}

	var vector []float32
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.InitialBackoff
	policy.MaxInterval = c.opts.MaxBackoff
	err := backoff.Retry(func() error {
		vec, err := c.producer.Produce(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		vector = vec
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, c.opts.MaxRetries), ctx))
	if err != nil {
		return c.markStale(docID, fmt.Errorf("producer failed: %w", err))
	}

	rec := &models.VectorRecord{
		DocID:       docID,
		Vector:      vector,
		ContentHash: digest,
		UpdatedAt:   time.Now(),
	}
	// Put stores the vector and records the digest in one atomic write.
	if err := c.cache.Put(ctx, rec); err != nil {
		return c.markStale(docID, err)
	}
	if err := c.index.Upsert(docID, vector); err != nil {
		return c.markStale(docID, fmt.Errorf("index update failed: %w", err))
	}
	c.setState(docID, StateUpToDate)
	if c.logger != nil {
		c.logger.Debug("document vector up to date", zap.String("doc_id", docID))
	}
	return nil
}

// SyncAll syncs every document through a bounded worker pool. Per-document
// failures are logged and counted, never propagated: the pass continues so
// the rest of the corpus stays available. Only context cancellation stops
// the pass early.
func (c *Coordinator) SyncAll(ctx context.Context, inputs []*models.DocumentInput) (failed int, err error) {
	var failures sync.Map
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for _, input := range inputs {
		input := input
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := c.SyncDocument(gctx, input); err != nil {
				failures.Store(input.ID, err)
				if c.logger != nil {
					c.logger.Warn("document sync failed", zap.String("doc_id", input.ID), zap.Error(err))
				}
			}
			return nil
		})
	}
	err = g.Wait()
	failures.Range(func(_, _ interface{}) bool {
		failed++
		return true
	})
	return failed, err
}

// Rebuild constructs the similarity index from the cache's valid projection.
// Used at startup so a warm cache serves queries without producer calls.
func (c *Coordinator) Rebuild(ctx context.Context) error {
	digests := make(map[string][]byte)
	for offset := 0; ; offset += listPageSize {
		docs, err := c.storage.ListDocuments(ctx, offset, listPageSize)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
		if len(docs) == 0 {
			break
		}
		for _, doc := range docs {
			digests[doc.ID] = doc.ContentHash
		}
		if len(docs) < listPageSize {
			break
		}
	}

	var records []*models.VectorRecord
	err := c.cache.ForEachValid(ctx, func(docID string) ([]byte, bool) {
		d, ok := digests[docID]
		return d, ok
	}, func(rec *models.VectorRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache scan failed: %w", err)
	}

	c.index.Build(records)
	c.mu.Lock()
	for _, rec := range records {
		c.states[rec.DocID] = StateUpToDate
	}
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.Info("similarity index rebuilt", zap.Int("records", len(records)))
	}
	return nil
}

// RemoveDocument drops the document from storage, cache, index, and state.
func (c *Coordinator) RemoveDocument(ctx context.Context, docID string) error {
	c.index.Remove(docID)
	if err := c.cache.Delete(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete cached vector: %w", err)
	}
	if err := c.storage.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	c.mu.Lock()
	delete(c.states, docID)
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.Debug("document removed", zap.String("doc_id", docID))
	}
	return nil
}

// State returns the current state for docID.
func (c *Coordinator) State(docID string) DocState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[docID]
}

// StateCounts returns how many documents are in each state.
func (c *Coordinator) StateCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[string]int)
	for _, s := range c.states {
		counts[s.String()]++
	}
	return counts
}

func (c *Coordinator) markStale(docID string, cause error) error {
	c.setState(docID, StateStale)
	if c.logger != nil {
		c.logger.Warn("document marked stale, serving previous record",
			zap.String("doc_id", docID), zap.Error(cause))
	}
	return cause
}

func (c *Coordinator) setState(docID string, s DocState) {
	c.mu.Lock()
	c.states[docID] = s
	c.mu.Unlock()
}

func (c *Coordinator) acquire(docID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[docID]; busy {
		return false
	}
	c.inflight[docID] = struct{}{}
	return true
}

func (c *Coordinator) release(docID string) {
	c.mu.Lock()
	delete(c.inflight, docID)
	c.mu.Unlock()
}
