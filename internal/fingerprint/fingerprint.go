// Package fingerprint computes content digests for documents and detects change.
package fingerprint

import (
	"bytes"
	"context"
	"crypto/sha256"
)

// DigestSize is the fixed width of a content digest in bytes.
const DigestSize = sha256.Size

// Hash returns the SHA-256 digest of text. Pure and deterministic: the same
// text always yields the same digest.
func Hash(text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return sum[:]
}

// DigestSource reports the last digest recorded for a document. The vector
// cache implements this: the digest stored with a cached vector is the
// recorded fingerprint, so recording happens atomically with the cache write.
type DigestSource interface {
	LastDigest(ctx context.Context, docID string) ([]byte, bool, error)
}

// Store detects content change against the last recorded digest.
type Store struct {
	source DigestSource
}

// NewStore creates a fingerprint store backed by source.
func NewStore(source DigestSource) *Store {
	return &Store{source: source}
}

// Changed reports whether digest differs from the last recorded digest for
// docID. An absent record counts as changed, as does a source read error:
// regenerating is safer than trusting a failing read.
func (s *Store) Changed(ctx context.Context, docID string, digest []byte) bool {
	last, ok, err := s.source.LastDigest(ctx, docID)
	if err != nil || !ok {
		return true
	}
	return !bytes.Equal(last, digest)
}
