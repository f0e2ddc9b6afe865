package service

import (
	"context"
	"fmt"
	"strings"

	"legalrag/internal/domain"
	"legalrag/internal/logger"
	"legalrag/internal/retrieval"
	"legalrag/internal/synthesizer"
	"legalrag/internal/textnorm"
)

// NotFoundMessage is shown when retrieval returns nothing.
const NotFoundMessage = "Không tìm thấy văn bản phù hợp."

// QueryConfig tunes the query pipeline.
type QueryConfig struct {
	// NormalizeQuery runs the search-term normalizer before embedding.
	NormalizeQuery bool
	// ContextTokens bounds the context handed to the synthesizer.
	ContextTokens int
}

// QueryResult is either a list of hits, an answer, or a not-found message.
type QueryResult struct {
	Query    string                `json:"query"`
	Hits     []domain.RetrievalHit `json:"hits"`
	NotFound bool                  `json:"not_found,omitempty"`
	Message  string                `json:"message,omitempty"`
	Answer   string                `json:"answer,omitempty"`
}

// QueryPipeline answers queries from the store.
type QueryPipeline struct {
	engine *retrieval.Engine
	synth  domain.Synthesizer
	config QueryConfig
}

// NewQueryPipeline creates a query pipeline. synth may be nil when Ask is not used.
func NewQueryPipeline(engine *retrieval.Engine, synth domain.Synthesizer, config QueryConfig) *QueryPipeline {
	if config.ContextTokens <= 0 {
		config.ContextTokens = synthesizer.DefaultContextTokens
	}
	return &QueryPipeline{engine: engine, synth: synth, config: config}
}

// Query returns ranked hits. Zero hits yield NotFound with NotFoundMessage
// and a nil error.
func (p *QueryPipeline) Query(ctx context.Context, text string, filters retrieval.Filters, topK int) (QueryResult, error) {
	q := p.searchText(text)
	result := QueryResult{Query: q}
	if q == "" {
		result.NotFound = true
		result.Message = NotFoundMessage
		result.Hits = []domain.RetrievalHit{}
		return result, nil
	}
	hits, err := p.engine.Retrieve(ctx, q, filters, topK)
	if err != nil {
		return result, err
	}
	result.Hits = hits
	if len(hits) == 0 {
		result.NotFound = true
		result.Message = NotFoundMessage
	}
	return result, nil
}

// Ask retrieves hits and synthesizes an answer from them.
func (p *QueryPipeline) Ask(ctx context.Context, text string, filters retrieval.Filters, topK int) (QueryResult, error) {
	if p.synth == nil {
		return QueryResult{}, fmt.Errorf("%w: no synthesizer configured", domain.ErrInvalidConfig)
	}
	result, err := p.Query(ctx, text, filters, topK)
	if err != nil || result.NotFound {
		return result, err
	}
	passages := synthesizer.BuildContext(result.Hits, p.config.ContextTokens)
	if passages == "" {
		logger.Warn("first hit exceeds the context budget of %d tokens", p.config.ContextTokens)
		result.Answer = synthesizer.ContextTooLong
		return result, nil
	}
	answer, err := p.synth.Generate(ctx, strings.TrimSpace(text), passages)
	if err != nil {
		return result, err
	}
	result.Answer = answer
	return result, nil
}

func (p *QueryPipeline) searchText(text string) string {
	text = strings.TrimSpace(text)
	if !p.config.NormalizeQuery {
		return text
	}
	if q := textnorm.SearchTerm(text); q != "" {
		return q
	}
	return text
}
