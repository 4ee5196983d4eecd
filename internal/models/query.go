package models

import "fmt"

// SearchQuery represents a search request.
type SearchQuery struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// Validate checks the query and applies defaults. An empty query or TopK < 0
// is rejected; TopK == 0 means "use defaultLimit". TopK is capped at maxLimit.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.TopK < 0 {
		return fmt.Errorf("top_k must be at least 1, got %d", q.TopK)
	}
	if q.TopK == 0 {
		q.TopK = defaultLimit
	}
	if q.TopK > maxLimit {
		q.TopK = maxLimit
	}
	return nil
}
