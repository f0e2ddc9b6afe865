// Package service wires normalization, chunking, scoring, embedding and
// storage into the ingestion and query pipelines.
package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"legalrag/internal/domain"
	"legalrag/internal/logger"
	"legalrag/internal/scorer"
	"legalrag/internal/source"
	"legalrag/internal/textnorm"
)

// DefaultConcurrency bounds in-flight embedding calls.
const DefaultConcurrency = 4

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	// MinScore drops chunks scoring below it. Zero keeps every chunk.
	MinScore float64
	// Concurrency bounds parallel embedding calls.
	Concurrency int
}

// IngestRequest names the sources to ingest and the metadata every chunk carries.
type IngestRequest struct {
	Sources  []string
	Metadata domain.ChunkMetadata
	// Title overrides the document title used by title-overlap chunking.
	Title string
}

// IngestResult reports what was stored. IDs follow record order.
type IngestResult struct {
	Documents     int      `json:"documents"`
	Chunks        int      `json:"chunks"`
	Skipped       int      `json:"skipped"`
	InsertedCount int      `json:"inserted_count"`
	IDs           []string `json:"ids"`
}

// Loader reads raw documents from a source reference.
type Loader interface {
	Load(ctx context.Context, src string) ([]domain.Document, error)
}

// IngestionPipeline turns sources into stored vector records.
type IngestionPipeline struct {
	loader   Loader
	chunker  domain.Chunker
	embedder domain.Embedder
	store    domain.VectorStore
	config   IngestConfig
}

// NewIngestionPipeline creates a pipeline over an initialized store.
func NewIngestionPipeline(loader Loader, chunker domain.Chunker, embedder domain.Embedder, store domain.VectorStore, config IngestConfig) *IngestionPipeline {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	return &IngestionPipeline{loader: loader, chunker: chunker, embedder: embedder, store: store, config: config}
}

// Ingest loads, normalizes, chunks, scores, embeds and stores every source.
// The first failing source aborts the call before anything is inserted.
func (p *IngestionPipeline) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	var result IngestResult
	if len(req.Sources) == 0 {
		return result, fmt.Errorf("%w: no sources", domain.ErrInvalidSource)
	}

	var records []domain.VectorRecord
	for _, src := range req.Sources {
		docs, err := p.loader.Load(ctx, src)
		if err != nil {
			return result, err
		}
		for _, doc := range docs {
			recs, produced, err := p.prepare(doc, req)
			if err != nil {
				return result, err
			}
			result.Documents++
			result.Chunks += produced
			result.Skipped += produced - len(recs)
			records = append(records, recs...)
		}
	}
	if len(records) == 0 {
		logger.Warn("no chunk passed the quality gate (min score %.2f)", p.config.MinScore)
		return result, nil
	}

	if err := p.embed(ctx, records); err != nil {
		return result, err
	}
	ids, err := p.store.Insert(ctx, records)
	if err != nil {
		return result, err
	}
	result.IDs = ids
	result.InsertedCount = len(ids)
	logger.Info("ingested %d documents, %d chunks stored, %d skipped", result.Documents, result.InsertedCount, result.Skipped)
	return result, nil
}

// prepare builds the records of one document. Chunking runs on the
// prepared text so separators and sentence terminators are still present;
// each chunk is then cleaned, and chunks left blank are dropped before ids
// are assigned. It returns the records kept and the number of chunks
// produced before the score gate.
func (p *IngestionPipeline) prepare(doc domain.Document, req IngestRequest) ([]domain.VectorRecord, int, error) {
	if req.Title != "" {
		doc.Title = req.Title
	}
	doc.Title = textnorm.CleanShort(doc.Title)
	doc.Content = textnorm.Prepare(doc.Content)
	if textnorm.Clean(doc.Content) == "" {
		return nil, 0, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, doc.Source)
	}

	chunks, err := p.chunker.Chunk(doc)
	if err != nil {
		return nil, 0, err
	}
	produced := 0
	records := make([]domain.VectorRecord, 0, len(chunks))
	for _, c := range chunks {
		text := textnorm.Clean(c.Content)
		if text == "" {
			continue
		}
		produced++
		score := scorer.Score(text, req.Metadata.SourceTag)
		if p.config.MinScore > 0 && score < p.config.MinScore {
			logger.Debug("skip %s#%d: score %.3f", doc.Source, produced, score)
			continue
		}
		records = append(records, domain.VectorRecord{
			Text:       text,
			Metadata:   req.Metadata,
			DocumentID: doc.ID,
			Source:     doc.Source,
			ChunkID:    produced,
			Score:      score,
		})
	}
	logger.Debug("%s: %d chunks, %d kept", doc.Source, produced, len(records))
	return records, produced, nil
}

// embed fills every record's vector with bounded concurrency.
func (p *IngestionPipeline) embed(ctx context.Context, records []domain.VectorRecord) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for i := range records {
		g.Go(func() error {
			v, err := p.embedder.Embed(ctx, records[i].Text)
			if err != nil {
				return fmt.Errorf("embed %s#%d: %w", records[i].Source, records[i].ChunkID, err)
			}
			records[i].Vector = v
			return nil
		})
	}
	return g.Wait()
}

var _ Loader = (*source.Loader)(nil)
