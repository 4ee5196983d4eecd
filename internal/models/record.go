package models

import "time"

// VectorRecord is a cached vector representation for a document. It is valid
// only while ContentHash equals the owning document's current content hash.
// The vector cache is the sole owner of vector data; the similarity index
// holds a projection keyed by DocID, never a second authority.
type VectorRecord struct {
	DocID       string
	Vector      []float32
	ContentHash []byte
	UpdatedAt   time.Time
}
