// Package storage defines the persistence interface for documents.
package storage

import (
	"context"

	"github.com/hyperjump/shirabe/internal/models"
)

// Storage defines document persistence operations. Document text is owned
// here; the vector cache owns vectors.
type Storage interface {
	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	CountDocuments(ctx context.Context) (int64, error)

	Close() error
}
