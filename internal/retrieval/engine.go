// Package retrieval turns a query into ranked, filtered hits from the vector store.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"legalrag/internal/domain"
	"legalrag/internal/logger"
)

// DefaultTopK is used when a caller passes topK <= 0.
const DefaultTopK = 3

// Filters are the optional equality constraints a query may carry.
type Filters struct {
	DocType string
	Code    string
}

// Filter converts the non-empty constraints into a store filter.
func (f Filters) Filter() domain.Filter {
	var out domain.Filter
	if v := strings.TrimSpace(f.DocType); v != "" {
		out = out.Eq(domain.FieldDocType, v)
	}
	if v := strings.TrimSpace(f.Code); v != "" {
		out = out.Eq(domain.FieldCode, v)
	}
	return out
}

// Config tunes the engine.
type Config struct {
	// TopK is the default number of hits.
	TopK int
	// IncludeText adds the stored chunk text to every hit.
	IncludeText bool
}

// Engine embeds queries and searches the store.
type Engine struct {
	embedder domain.Embedder
	store    domain.VectorStore
	config   Config
}

// NewEngine creates an Engine over an initialized store.
func NewEngine(embedder domain.Embedder, store domain.VectorStore, config Config) *Engine {
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	return &Engine{embedder: embedder, store: store, config: config}
}

// OutputFields lists the fields requested from the store.
func (e *Engine) OutputFields() []string {
	fields := append([]string(nil), domain.MetadataFields...)
	if e.config.IncludeText {
		fields = append(fields, domain.FieldText)
	}
	return fields
}

// Retrieve returns up to topK hits for query in store order. No hits is an
// empty slice and a nil error; adapter failures wrap ErrEmbedding or
// ErrVectorStore.
func (e *Engine) Retrieve(ctx context.Context, query string, filters Filters, topK int) ([]domain.RetrievalHit, error) {
	if topK <= 0 {
		topK = e.config.TopK
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, domain.ErrEmbedding) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	if isZero(vec) {
		logger.Debug("query %q has no indexable terms", query)
	}

	ok, err := e.store.HasIndex(ctx)
	switch {
	case err != nil:
		logger.Warn("index check failed, searching anyway: %v", err)
	case !ok:
		logger.Warn("no index on the embedding field, search may be slow")
	}

	filter := filters.Filter()
	logger.Debug("search topK=%d filter=%q", topK, filter.Expr())
	hits, err := e.store.Search(ctx, domain.SearchRequest{
		Vector:       vec,
		Filter:       filter,
		TopK:         topK,
		OutputFields: e.OutputFields(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrVectorStore) || errors.Is(err, domain.ErrDimensionMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorStore, err)
	}
	if hits == nil {
		hits = []domain.RetrievalHit{}
	}
	return hits, nil
}

func isZero(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
