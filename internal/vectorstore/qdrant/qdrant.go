// Package qdrant stores chunk vectors as Qdrant points with the chunk text
// and metadata in the payload.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"legalrag/internal/domain"
	"legalrag/internal/logger"
)

// Config holds configuration for the Qdrant store.
type Config struct {
	// Collection is the name of the Qdrant collection.
	Collection string
	// Metric selects the collection distance. Defaults to L2 (Euclid).
	Metric domain.Metric
	// DropExisting deletes the collection on Init.
	DropExisting bool
}

// Storage implements domain.VectorStore on Qdrant.
type Storage struct {
	client    *qdrant.Client
	config    Config
	dimension int
}

var _ domain.VectorStore = (*Storage)(nil)

// Connect creates a gRPC client for host:port.
func Connect(host string, port int, apiKey string, useTLS bool) (*qdrant.Client, error) {
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s:%d: %w", domain.ErrVectorStore, host, port, err)
	}
	return c, nil
}

// New creates a Qdrant store with the given client and config.
func New(client *qdrant.Client, config Config) *Storage {
	if config.Collection == "" {
		config.Collection = "legal_docs"
	}
	if config.Metric == "" {
		config.Metric = domain.MetricL2
	}
	return &Storage{client: client, config: config}
}

// Init creates the collection if missing.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrVectorStore, dimension)
	}
	s.dimension = dimension
	coll := s.config.Collection

	exists, err := s.client.CollectionExists(ctx, coll)
	if err != nil {
		return fmt.Errorf("%w: collection exists: %w", domain.ErrVectorStore, err)
	}
	if exists && s.config.DropExisting {
		logger.Info("dropping collection %s", coll)
		if err := s.client.DeleteCollection(ctx, coll); err != nil {
			return fmt.Errorf("%w: delete collection: %w", domain.ErrVectorStore, err)
		}
		exists = false
	}
	if exists {
		return nil
	}
	logger.Info("creating collection %s (dim %d)", coll, dimension)
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: coll,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: distance(s.config.Metric),
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection: %w", domain.ErrVectorStore, err)
	}
	return nil
}

// Insert upserts records as new points with random UUIDs and waits for the write.
func (s *Storage) Insert(ctx context.Context, records []domain.VectorRecord) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	points, ids, err := s.points(records)
	if err != nil {
		return nil, err
	}
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.Collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: upsert: %w", domain.ErrVectorStore, err)
	}
	return ids, nil
}

func (s *Storage) points(records []domain.VectorRecord) ([]*qdrant.PointStruct, []string, error) {
	points := make([]*qdrant.PointStruct, len(records))
	ids := make([]string, len(records))
	for i, r := range records {
		if s.dimension > 0 && len(r.Vector) != s.dimension {
			return nil, nil, fmt.Errorf("%w: record %d has %d, want %d", domain.ErrDimensionMismatch, i, len(r.Vector), s.dimension)
		}
		ids[i] = uuid.NewString()
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(ids[i]),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: toPayload(r),
		}
	}
	return points, ids, nil
}

func toPayload(r domain.VectorRecord) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		domain.FieldText:         qdrant.NewValueString(r.Text),
		domain.FieldSource:       qdrant.NewValueString(r.Source),
		domain.FieldDocumentID:   qdrant.NewValueString(r.DocumentID),
		domain.FieldChunkID:      qdrant.NewValueInt(int64(r.ChunkID)),
		domain.FieldQualityScore: qdrant.NewValueDouble(r.Score),
		domain.FieldSourceTag:    qdrant.NewValueString(r.Metadata.SourceTag),
	}
	for _, f := range domain.MetadataFields {
		payload[f] = qdrant.NewValueString(r.Metadata.Get(f))
	}
	return payload
}

// Search queries nearest points matching every filter condition.
func (s *Storage) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievalHit, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(req.Vector...),
		Filter:         buildFilter(req.Filter),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", domain.ErrVectorStore, err)
	}
	hits := make([]domain.RetrievalHit, 0, len(resp))
	for _, p := range resp {
		hits = append(hits, fromPoint(p.GetId(), float64(p.GetScore()), p.GetPayload(), req))
	}
	return hits, nil
}

func fromPoint(id *qdrant.PointId, score float64, payload map[string]*qdrant.Value, req domain.SearchRequest) domain.RetrievalHit {
	hit := domain.RetrievalHit{ID: pointID(id), Score: score}
	str := func(k string) string {
		if v, ok := payload[k]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	for _, f := range domain.MetadataFields {
		if len(req.OutputFields) == 0 || req.WantsField(f) {
			hit.Metadata.Set(f, str(f))
		}
	}
	if req.WantsField(domain.FieldText) {
		hit.Text = str(domain.FieldText)
	}
	hit.Source = str(domain.FieldSource)
	if v, ok := payload[domain.FieldChunkID]; ok {
		hit.ChunkID = int(v.GetIntegerValue())
	}
	return hit
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprint(id.GetNum())
}

func buildFilter(f domain.Filter) *qdrant.Filter {
	if f.Empty() {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		conditions = append(conditions, qdrant.NewMatchKeyword(c.Field, c.Value))
	}
	return &qdrant.Filter{Must: conditions}
}

// HasIndex is always true: Qdrant builds its HNSW index on write.
func (s *Storage) HasIndex(context.Context) (bool, error) { return true, nil }

// Clear deletes and recreates the collection.
func (s *Storage) Clear(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.config.Collection); err != nil {
		return fmt.Errorf("%w: delete collection: %w", domain.ErrVectorStore, err)
	}
	if s.dimension == 0 {
		return nil
	}
	drop := s.config.DropExisting
	s.config.DropExisting = false
	defer func() { s.config.DropExisting = drop }()
	return s.Init(ctx, s.dimension)
}

// Close closes the gRPC connection.
func (s *Storage) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func distance(m domain.Metric) qdrant.Distance {
	switch m {
	case domain.MetricCosine:
		return qdrant.Distance_Cosine
	case domain.MetricIP:
		return qdrant.Distance_Dot
	default:
		return qdrant.Distance_Euclid
	}
}
