// Package cache provides the durable vector cache: a key-value store mapping
// document identity to its cached vector representation and content digest.
// The cache is the sole owner of vector data; the similarity index only holds
// a projection of the currently valid set.
package cache

import (
	"context"

	"github.com/hyperjump/shirabe/internal/models"
)

// Cache is the vector cache contract.
//
// A record is valid only while its stored digest equals the document's
// current content digest. A miss (absent record or digest mismatch) is
// expected control flow, reported as (nil, false, nil) rather than an error.
type Cache interface {
	// Get returns the record for docID iff present and its stored digest
	// equals currentDigest. Storage read failures are treated as a miss so
	// regeneration proceeds instead of the document becoming unqueryable.
	Get(ctx context.Context, docID string, currentDigest []byte) (*models.VectorRecord, bool, error)

	// Put upserts the record atomically. Once Put returns nil the record is
	// durable and a subsequent Get returns it until superseded. Write
	// failures are surfaced: a silently lost write would desynchronize
	// document state and cache.
	Put(ctx context.Context, rec *models.VectorRecord) error

	// ForEachValid streams every record whose stored digest matches the
	// current digest reported by digestOf, in unspecified order. The scan is
	// lazy and restartable by calling again. fn returning an error stops
	// the scan and propagates the error.
	ForEachValid(ctx context.Context, digestOf func(docID string) ([]byte, bool), fn func(*models.VectorRecord) error) error

	// LastDigest reports the digest stored with docID's record, if any.
	// This doubles as the fingerprint store's recorded digest, keeping
	// digest recording atomic with the vector write.
	LastDigest(ctx context.Context, docID string) ([]byte, bool, error)

	// Delete removes the record for docID. Deleting an absent record is not
	// an error.
	Delete(ctx context.Context, docID string) error

	// Count returns the number of records, valid or not.
	Count(ctx context.Context) (int64, error)

	Close() error
}
