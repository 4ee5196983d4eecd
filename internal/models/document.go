// Package models defines core data structures for documents, vector records,
// queries, and search results.
package models

import "time"

// Document represents a stored document. ContentHash is the SHA-256 digest of
// Text and is recomputed whenever the text changes.
type Document struct {
	ID          string                 `json:"id" db:"id"`
	Title       string                 `json:"title" db:"title"`
	Text        string                 `json:"text" db:"content"`
	ContentHash []byte                 `json:"-" db:"content_hash"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at" db:"updated_at"`
}

// DocumentInput is the input for creating or updating a document.
type DocumentInput struct {
	ID       string                 `json:"id,omitempty"`
	Title    string                 `json:"title,omitempty"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
