// Package search runs the query pipeline: validate, embed the query via the
// producer, rank against the similarity index, then hydrate and annotate the
// hits for display.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/index"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/producer"
	"github.com/hyperjump/shirabe/internal/ranking"
	"github.com/hyperjump/shirabe/internal/storage"
)

// Engine answers search queries against the similarity index.
type Engine struct {
	storage   storage.Storage
	producer  producer.Producer
	index     *index.Index
	explainer *ranking.Explainer
	config    *config.SearchConfig
	logger    *zap.Logger // optional
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for hydration warnings.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	store storage.Storage,
	prod producer.Producer,
	idx *index.Index,
	cfg *config.SearchConfig,
	opts ...Option,
) *Engine {
	e := &Engine{
		storage:   store,
		producer:  prod,
		index:     idx,
		explainer: ranking.NewExplainer(cfg.ExplanationTerms, cfg.PreviewLength),
		config:    cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IndexSize returns the number of documents currently indexed.
func (e *Engine) IndexSize() int {
	return e.index.Size()
}

// Search embeds the query, ranks it against the index, and returns hydrated
// results in rank order. Explanation and preview are display-only: a document
// whose text cannot be loaded still appears at its rank, just unannotated.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(e.config.DefaultLimit, e.config.MaxLimit); err != nil {
		return nil, err
	}

	queryVector, err := e.producer.Produce(ctx, query.Query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	hits, err := e.index.Query(ctx, queryVector, query.TopK)
	if err != nil {
		return nil, fmt.Errorf("index query failed: %w", err)
	}

	response := &models.SearchResponse{
		Results: make([]*models.QueryResult, 0, len(hits)),
		Total:   len(hits),
		Query:   query.Query,
	}
	for i, hit := range hits {
		result := &models.QueryResult{
			DocID: hit.DocID,
			Score: hit.Score,
			Rank:  i + 1,
		}
		doc, err := e.storage.GetDocument(ctx, hit.DocID)
		if err != nil {
			// Ranking stands on its own; annotation failures degrade to a
			// bare result rather than dropping or reordering the hit.
			if e.logger != nil {
				e.logger.Warn("failed to load document for annotation",
					zap.String("doc_id", hit.DocID), zap.Error(err))
			}
			result.Explanation = &models.Explanation{OverlapTerms: []string{}}
			response.Results = append(response.Results, result)
			continue
		}
		result.Title = doc.Title
		result.Preview = e.explainer.Preview(doc.Text)
		result.Explanation = e.explainer.Explain(query.Query, doc.Text)
		response.Results = append(response.Results, result)
	}
	response.QueryTime = time.Since(startTime).Milliseconds()
	return response, nil
}
