package models

// Explanation carries interpretable signals for a single result. It is
// display-only and never influences score or rank order.
type Explanation struct {
	// OverlapTerms are query terms lexically present in the document text.
	OverlapTerms []string `json:"overlap_terms"`
	// OverlapRatio is len(overlap) / len(query terms), in [0,1].
	OverlapRatio float64 `json:"overlap_ratio"`
	// DocTerms is the number of terms in the document text.
	DocTerms int `json:"doc_terms"`
}

// QueryResult is a single ranked search hit.
type QueryResult struct {
	DocID       string       `json:"doc_id"`
	Title       string       `json:"title,omitempty"`
	Score       float64      `json:"score"`
	Rank        int          `json:"rank"`
	Preview     string       `json:"preview,omitempty"`
	Explanation *Explanation `json:"explanation,omitempty"`
}

// SearchResponse is the response for a search request. Results are in rank
// order (score descending, doc_id ascending on ties).
type SearchResponse struct {
	Results   []*QueryResult `json:"results"`
	Total     int            `json:"total"`
	QueryTime int64          `json:"query_time_ms"`
	Query     string         `json:"query"`
}
