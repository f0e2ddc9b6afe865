// Package milvus stores chunk vectors in a Milvus collection with one
// VarChar column per metadata field and an IVF_FLAT index on the embedding.
package milvus

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"legalrag/internal/domain"
	"legalrag/internal/logger"
)

// Column names besides the metadata fields declared in domain.
const (
	FieldID        = "id"
	FieldEmbedding = "embedding"
)

// Defaults of the legal_docs collection.
const (
	DefaultCollection = "legal_docs"
	DefaultNList      = 128
	DefaultNProbe     = 10
)

// varCharLimits are the max lengths of the VarChar columns.
var varCharLimits = map[string]int{
	domain.FieldText:          8192,
	domain.FieldDocType:       64,
	domain.FieldCode:          64,
	domain.FieldIssueDate:     32,
	domain.FieldEffectiveDate: 32,
	domain.FieldSourceTag:     64,
	domain.FieldSource:        1024,
	domain.FieldDocumentID:    64,
}

// varCharOrder fixes the column order of inserts and of the schema.
var varCharOrder = []string{
	domain.FieldText,
	domain.FieldDocType,
	domain.FieldCode,
	domain.FieldIssueDate,
	domain.FieldEffectiveDate,
	domain.FieldSourceTag,
	domain.FieldSource,
	domain.FieldDocumentID,
}

// Config holds configuration for the Milvus store.
type Config struct {
	// Collection is the name of the Milvus collection. Defaults to legal_docs.
	Collection string
	// Metric ranks search results. Defaults to L2.
	Metric domain.Metric
	// NList is the IVF_FLAT cluster count. Defaults to 128.
	NList int
	// NProbe is the number of clusters searched. Defaults to 10.
	NProbe int
	// DropExisting drops the collection on Init.
	DropExisting bool
}

// Storage implements domain.VectorStore on Milvus.
type Storage struct {
	client    client.Client
	config    Config
	dimension int
}

var _ domain.VectorStore = (*Storage)(nil)

// Connect dials Milvus at address.
func Connect(ctx context.Context, address, username, password, dbName string) (client.Client, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address:  address,
		Username: username,
		Password: password,
		DBName:   dbName,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", domain.ErrVectorStore, address, err)
	}
	return c, nil
}

// New creates a Milvus store with the given client and config.
func New(c client.Client, config Config) *Storage {
	if config.Collection == "" {
		config.Collection = DefaultCollection
	}
	if config.Metric == "" {
		config.Metric = domain.MetricL2
	}
	if config.NList <= 0 {
		config.NList = DefaultNList
	}
	if config.NProbe <= 0 {
		config.NProbe = DefaultNProbe
	}
	return &Storage{client: c, config: config}
}

// Init creates the collection and its index when missing and loads it.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrVectorStore, dimension)
	}
	s.dimension = dimension
	coll := s.config.Collection

	exists, err := s.client.HasCollection(ctx, coll)
	if err != nil {
		return fmt.Errorf("%w: has collection: %w", domain.ErrVectorStore, err)
	}
	if exists && s.config.DropExisting {
		logger.Info("dropping collection %s", coll)
		if err := s.client.DropCollection(ctx, coll); err != nil {
			return fmt.Errorf("%w: drop collection: %w", domain.ErrVectorStore, err)
		}
		exists = false
	}
	if !exists {
		logger.Info("creating collection %s (dim %d)", coll, dimension)
		if err := s.client.CreateCollection(ctx, s.schema(), entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("%w: create collection: %w", domain.ErrVectorStore, err)
		}
	}

	if ok, _ := s.HasIndex(ctx); !ok {
		idx, err := entity.NewIndexIvfFlat(metricType(s.config.Metric), s.config.NList)
		if err != nil {
			return fmt.Errorf("%w: index params: %w", domain.ErrVectorStore, err)
		}
		if err := s.client.CreateIndex(ctx, coll, FieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("%w: create index: %w", domain.ErrVectorStore, err)
		}
	}
	if err := s.client.LoadCollection(ctx, coll, false); err != nil {
		return fmt.Errorf("%w: load collection: %w", domain.ErrVectorStore, err)
	}
	return nil
}

func (s *Storage) schema() *entity.Schema {
	schema := entity.NewSchema().
		WithName(s.config.Collection).
		WithDescription("legal document chunks").
		WithField(entity.NewField().
			WithName(FieldID).
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(true)).
		WithField(entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(s.dimension))).
		WithField(entity.NewField().
			WithName(domain.FieldChunkID).
			WithDataType(entity.FieldTypeInt64))
	for _, name := range varCharOrder {
		schema = schema.WithField(entity.NewField().
			WithName(name).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(int64(varCharLimits[name])))
	}
	return schema
}

// Insert writes records in one batch and flushes so they are searchable.
// Ids are assigned by Milvus.
func (s *Storage) Insert(ctx context.Context, records []domain.VectorRecord) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	cols, err := s.columns(records)
	if err != nil {
		return nil, err
	}
	idCol, err := s.client.Insert(ctx, s.config.Collection, "", cols...)
	if err != nil {
		return nil, fmt.Errorf("%w: insert: %w", domain.ErrVectorStore, err)
	}
	if err := s.client.Flush(ctx, s.config.Collection, false); err != nil {
		return nil, fmt.Errorf("%w: flush: %w", domain.ErrVectorStore, err)
	}
	return columnStrings(idCol), nil
}

// columns converts records to insert columns in schema order.
func (s *Storage) columns(records []domain.VectorRecord) ([]entity.Column, error) {
	vectors := make([][]float32, len(records))
	chunkIDs := make([]int64, len(records))
	values := make(map[string][]string, len(varCharOrder))
	for i, r := range records {
		if s.dimension > 0 && len(r.Vector) != s.dimension {
			return nil, fmt.Errorf("%w: record %d has %d, want %d", domain.ErrDimensionMismatch, i, len(r.Vector), s.dimension)
		}
		vectors[i] = r.Vector
		chunkIDs[i] = int64(r.ChunkID)
		for _, name := range varCharOrder {
			v := fieldValue(r, name)
			cut := truncate(v, varCharLimits[name])
			if name == domain.FieldText && len(cut) < len(v) {
				logger.Warn("%s chunk %d: text truncated from %d to %d bytes", r.Source, r.ChunkID, len(v), len(cut))
			}
			values[name] = append(values[name], cut)
		}
	}
	dim := s.dimension
	if dim == 0 {
		dim = len(vectors[0])
	}

	cols := []entity.Column{
		entity.NewColumnFloatVector(FieldEmbedding, dim, vectors),
		entity.NewColumnInt64(domain.FieldChunkID, chunkIDs),
	}
	for _, name := range varCharOrder {
		cols = append(cols, entity.NewColumnVarChar(name, values[name]))
	}
	return cols, nil
}

func fieldValue(r domain.VectorRecord, name string) string {
	switch name {
	case domain.FieldText:
		return r.Text
	case domain.FieldSource:
		return r.Source
	case domain.FieldDocumentID:
		return r.DocumentID
	}
	return r.Metadata.Get(name)
}

// truncate cuts s to at most limit bytes on a rune boundary.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Search runs a filtered ANN search with the configured nprobe.
func (s *Storage) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RetrievalHit, error) {
	sp, err := entity.NewIndexIvfFlatSearchParam(s.config.NProbe)
	if err != nil {
		return nil, fmt.Errorf("%w: search params: %w", domain.ErrVectorStore, err)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	outputFields := searchFields(req)

	results, err := s.client.Search(
		ctx,
		s.config.Collection,
		nil,
		req.Filter.Expr(),
		outputFields,
		[]entity.Vector{entity.FloatVector(req.Vector)},
		FieldEmbedding,
		metricType(s.config.Metric),
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", domain.ErrVectorStore, err)
	}
	if len(results) == 0 {
		return []domain.RetrievalHit{}, nil
	}

	result := results[0]
	ids := columnStrings(result.IDs)
	hits := make([]domain.RetrievalHit, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		hit := domain.RetrievalHit{Score: float64(result.Scores[i])}
		if i < len(ids) {
			hit.ID = ids[i]
		}
		for _, name := range outputFields {
			col := result.Fields.GetColumn(name)
			if col == nil {
				continue
			}
			switch name {
			case domain.FieldChunkID:
				if c, ok := col.(*entity.ColumnInt64); ok {
					v, _ := c.ValueByIdx(i)
					hit.ChunkID = int(v)
				}
			default:
				c, ok := col.(*entity.ColumnVarChar)
				if !ok {
					continue
				}
				v, _ := c.ValueByIdx(i)
				switch name {
				case domain.FieldText:
					hit.Text = v
				case domain.FieldSource:
					hit.Source = v
				default:
					hit.Metadata.Set(name, v)
				}
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// searchFields returns the requested output fields plus chunk_id and source,
// or every metadata field when none are requested.
func searchFields(req domain.SearchRequest) []string {
	fields := append([]string(nil), req.OutputFields...)
	if len(fields) == 0 {
		fields = append(fields, domain.MetadataFields...)
	}
	for _, extra := range []string{domain.FieldChunkID, domain.FieldSource} {
		if !req.WantsField(extra) {
			fields = append(fields, extra)
		}
	}
	return fields
}

// HasIndex reports whether an index exists on the embedding field.
func (s *Storage) HasIndex(ctx context.Context) (bool, error) {
	idx, err := s.client.DescribeIndex(ctx, s.config.Collection, FieldEmbedding)
	if err != nil {
		return false, fmt.Errorf("%w: describe index: %w", domain.ErrVectorStore, err)
	}
	return len(idx) > 0, nil
}

// Clear drops the collection and recreates it empty.
func (s *Storage) Clear(ctx context.Context) error {
	if err := s.client.DropCollection(ctx, s.config.Collection); err != nil {
		return fmt.Errorf("%w: drop collection: %w", domain.ErrVectorStore, err)
	}
	if s.dimension == 0 {
		return nil
	}
	drop := s.config.DropExisting
	s.config.DropExisting = false
	defer func() { s.config.DropExisting = drop }()
	return s.Init(ctx, s.dimension)
}

// Close closes the client connection.
func (s *Storage) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func metricType(m domain.Metric) entity.MetricType {
	switch m {
	case domain.MetricCosine:
		return entity.COSINE
	case domain.MetricIP:
		return entity.IP
	default:
		return entity.L2
	}
}

// columnStrings renders an id column as strings.
func columnStrings(col entity.Column) []string {
	switch c := col.(type) {
	case *entity.ColumnInt64:
		data := c.Data()
		out := make([]string, len(data))
		for i, v := range data {
			out[i] = strconv.FormatInt(v, 10)
		}
		return out
	case *entity.ColumnVarChar:
		return append([]string(nil), c.Data()...)
	}
	return nil
}
