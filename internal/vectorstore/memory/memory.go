// Package memory is an in-process vector store using brute-force search.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"legalrag/internal/domain"
)

// Storage keeps records in memory and scans all of them on every search.
type Storage struct {
	mu        sync.RWMutex
	metric    domain.Metric
	dimension int
	nextID    int64
	records   []domain.VectorRecord
}

var _ domain.VectorStore = (*Storage)(nil)

// NewStorage creates an empty store ranking by metric.
func NewStorage(metric domain.Metric) *Storage {
	if metric == "" {
		metric = domain.MetricL2
	}
	return &Storage{metric: metric}
}

// Init sets the vector dimension. Re-initializing with the same dimension
// keeps stored records; a different dimension is only accepted while empty.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrVectorStore, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension != 0 && s.dimension != dimension && len(s.records) > 0 {
		return fmt.Errorf("%w: store has dimension %d, got %d", domain.ErrDimensionMismatch, s.dimension, dimension)
	}
	s.dimension = dimension
	return nil
}

// Insert appends records and assigns sequential ids. Either all records are
// stored or none.
func (s *Storage) Insert(_ context.Context, records []domain.VectorRecord) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return nil, fmt.Errorf("%w: store not initialized", domain.ErrVectorStore)
	}
	for i, r := range records {
		if len(r.Vector) != s.dimension {
			return nil, fmt.Errorf("%w: record %d has %d, want %d", domain.ErrDimensionMismatch, i, len(r.Vector), s.dimension)
		}
	}
	ids := make([]string, len(records))
	for i, r := range records {
		s.nextID++
		r.ID = strconv.FormatInt(s.nextID, 10)
		r.Vector = append([]float32(nil), r.Vector...)
		s.records = append(s.records, r)
		ids[i] = r.ID
	}
	return ids, nil
}

type scored struct {
	idx   int
	score float64
}

// Search ranks the records matching req.Filter and returns the best TopK.
// Ties keep insertion order.
func (s *Storage) Search(_ context.Context, req domain.SearchRequest) ([]domain.RetrievalHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimension != 0 && len(req.Vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, want %d", domain.ErrDimensionMismatch, len(req.Vector), s.dimension)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}

	candidates := make([]scored, 0, len(s.records))
	for i, r := range s.records {
		if !req.Filter.Match(r.Metadata) {
			continue
		}
		candidates = append(candidates, scored{idx: i, score: s.score(r.Vector, req.Vector)})
	}
	asc := s.metric.Ascending()
	sort.SliceStable(candidates, func(a, b int) bool {
		if asc {
			return candidates[a].score < candidates[b].score
		}
		return candidates[a].score > candidates[b].score
	})
	if topK > len(candidates) {
		topK = len(candidates)
	}

	hits := make([]domain.RetrievalHit, 0, topK)
	for _, c := range candidates[:topK] {
		hits = append(hits, toHit(s.records[c.idx], c.score, req))
	}
	return hits, nil
}

func toHit(r domain.VectorRecord, score float64, req domain.SearchRequest) domain.RetrievalHit {
	hit := domain.RetrievalHit{ID: r.ID, Score: score, ChunkID: r.ChunkID, Source: r.Source}
	for _, f := range domain.MetadataFields {
		if len(req.OutputFields) == 0 || req.WantsField(f) {
			hit.Metadata.Set(f, r.Metadata.Get(f))
		}
	}
	if req.WantsField(domain.FieldText) {
		hit.Text = r.Text
	}
	return hit
}

func (s *Storage) score(a, b []float32) float64 {
	switch s.metric {
	case domain.MetricIP:
		return dot(a, b)
	case domain.MetricCosine:
		na, nb := math.Sqrt(dot(a, a)), math.Sqrt(dot(b, b))
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	default:
		return l2(a, b)
	}
}

// HasIndex is always true: the brute-force scan needs no index.
func (s *Storage) HasIndex(context.Context) (bool, error) { return true, nil }

// Len returns the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear removes all records but keeps the dimension.
func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}

// Close is a no-op.
func (s *Storage) Close() error { return nil }

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// l2 is the squared Euclidean distance, as Milvus reports it.
func l2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
