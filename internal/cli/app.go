package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"legalrag/internal/chunker"
	"legalrag/internal/config"
	"legalrag/internal/domain"
	"legalrag/internal/embedding/hashing"
	embedopenai "legalrag/internal/embedding/openai"
	"legalrag/internal/logger"
	"legalrag/internal/retrieval"
	"legalrag/internal/service"
	"legalrag/internal/source"
	"legalrag/internal/synthesizer/extractive"
	synthopenai "legalrag/internal/synthesizer/openai"
	"legalrag/internal/vectorstore/memory"
	"legalrag/internal/vectorstore/milvus"
	"legalrag/internal/vectorstore/qdrant"
)

// app holds the adapters and pipelines assembled from one config.
type app struct {
	cfg      *config.AppConfig
	embedder domain.Embedder
	store    domain.VectorStore
	synth    domain.Synthesizer
	ingest   *service.IngestionPipeline
	query    *service.QueryPipeline
}

// newApp wires every adapter named in cfg and initializes the store.
// withSynth controls whether a synthesizer is built.
func newApp(ctx context.Context, cfg *config.AppConfig, withSynth bool) (*app, error) {
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	ch, err := newChunker(cfg)
	if err != nil {
		return nil, err
	}
	st, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx, cfg.Embedder.Dimension); err != nil {
		_ = st.Close()
		return nil, err
	}

	a := &app{cfg: cfg, embedder: emb, store: st}
	if withSynth {
		if a.synth, err = newSynthesizer(cfg); err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	loader := source.NewLoader(time.Duration(cfg.Ingest.TimeoutSecs)*time.Second, cfg.Ingest.MaxBytes)
	a.ingest = service.NewIngestionPipeline(loader, ch, emb, st, service.IngestConfig{
		MinScore:    cfg.Ingest.MinScore,
		Concurrency: cfg.Ingest.Concurrency,
	})
	engine := retrieval.NewEngine(emb, st, retrieval.Config{
		TopK:        cfg.Retrieval.TopK,
		IncludeText: cfg.Retrieval.IncludeText,
	})
	a.query = service.NewQueryPipeline(engine, a.synth, service.QueryConfig{
		NormalizeQuery: cfg.Retrieval.NormalizeQuery,
		ContextTokens:  cfg.Synthesizer.ContextTokens,
	})
	logger.Debug("embedder=%s store=%s synthesizer=%s", emb.Name(), cfg.VectorStore.Type, cfg.Synthesizer.Type)
	return a, nil
}

// Close releases the store connection.
func (a *app) Close() error {
	return a.store.Close()
}

// preload ingests sources before a query when the store is process-local.
func (a *app) preload(ctx context.Context, sources []string, md domain.ChunkMetadata) (service.IngestResult, error) {
	if len(sources) == 0 {
		return service.IngestResult{}, nil
	}
	return a.ingest.Ingest(ctx, service.IngestRequest{Sources: sources, Metadata: md})
}

func newEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "hashing":
		return hashing.NewEmbedder(cfg.Embedder.Dimension), nil
	case "openai":
		o := cfg.Embedder.OpenAI
		return embedopenai.NewClient(embedopenai.Config{
			BaseURL:           o.BaseURL,
			APIKeyEnv:         o.APIKeyEnv,
			Model:             o.Model,
			Timeout:           time.Duration(o.TimeoutSecs) * time.Second,
			Dimension:         cfg.Embedder.Dimension,
			RequestsPerSecond: o.RequestsPerSecond,
			MaxRetries:        o.MaxRetries,
		})
	}
	return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrInvalidConfig, cfg.Embedder.Type)
}

func newChunker(cfg *config.AppConfig) (*chunker.Chunker, error) {
	c := cfg.Chunker
	return chunker.New(chunker.Policy(c.Policy), chunker.Params{
		MaxCharacters:    c.MaxCharacters,
		OverlapSize:      c.OverlapSize,
		Title:            c.Title,
		MaxWords:         c.MaxWords,
		OverlapSentences: c.OverlapSentences,
		Separator:        c.Separator,
	})
}

func newStore(ctx context.Context, cfg *config.AppConfig) (domain.VectorStore, error) {
	metric, err := domain.ParseMetric(cfg.VectorStore.Metric)
	if err != nil {
		return nil, err
	}
	switch cfg.VectorStore.Type {
	case "memory":
		return memory.NewStorage(metric), nil
	case "milvus":
		m := cfg.VectorStore.Milvus
		c, err := milvus.Connect(ctx, m.Address, m.Username, secret(m.PasswordEnv), m.Database)
		if err != nil {
			return nil, err
		}
		return milvus.New(c, milvus.Config{
			Collection:   m.Collection,
			Metric:       metric,
			NList:        m.NList,
			NProbe:       m.NProbe,
			DropExisting: m.DropExisting,
		}), nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		c, err := qdrant.Connect(q.Host, q.Port, secret(q.APIKeyEnv), q.UseTLS)
		if err != nil {
			return nil, err
		}
		return qdrant.New(c, qdrant.Config{
			Collection:   q.Collection,
			Metric:       metric,
			DropExisting: q.DropExisting,
		}), nil
	}
	return nil, fmt.Errorf("%w: unknown vector store %q", domain.ErrInvalidConfig, cfg.VectorStore.Type)
}

func newSynthesizer(cfg *config.AppConfig) (domain.Synthesizer, error) {
	s := cfg.Synthesizer
	switch s.Type {
	case "extractive":
		return extractive.New(s.MaxSentences, s.MaxPromptTokens), nil
	case "openai":
		o := s.OpenAI
		return synthopenai.New(synthopenai.Config{
			BaseURL:         o.BaseURL,
			APIKeyEnv:       o.APIKeyEnv,
			Model:           o.Model,
			Timeout:         time.Duration(o.TimeoutSecs) * time.Second,
			MaxPromptTokens: s.MaxPromptTokens,
			MaxTokens:       o.MaxTokens,
			Referer:         o.Referer,
			Title:           o.Title,
		})
	}
	return nil, fmt.Errorf("%w: unknown synthesizer %q", domain.ErrInvalidConfig, s.Type)
}

func secret(env string) string {
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

// ExitCode maps errors to process exit codes: 2 for bad input or config, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrInvalidConfig), errors.Is(err, domain.ErrUnknownPolicy),
		errors.Is(err, domain.ErrInvalidSource), errors.Is(err, domain.ErrUnsupportedSource),
		errors.Is(err, domain.ErrEmptyDocument):
		return 2
	}
	return 1
}
