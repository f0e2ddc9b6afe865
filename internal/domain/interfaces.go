package domain

import (
	"context"
	"fmt"
	"strings"
)

// Document represents a single source document loaded into the system.
type Document struct {
	ID      string
	Source  string
	Title   string
	Content string
}

// Chunk is a bounded contiguous part of a document used for indexing.
// ChunkID is 1-based and contiguous over the chunks retained by one chunking call.
type Chunk struct {
	DocumentID string
	ChunkID    int
	Content    string
}

// ChunkMetadata is attached by the ingestion caller and carried unchanged
// through embedding, storage and retrieval.
type ChunkMetadata struct {
	DocType       string `json:"doc_type" yaml:"doc_type"`
	Code          string `json:"code" yaml:"code"`
	IssueDate     string `json:"issue_date" yaml:"issue_date"`
	EffectiveDate string `json:"effective_date" yaml:"effective_date"`
	SourceTag     string `json:"source_tag" yaml:"source_tag"`
}

// Metadata field names as stored in the vector index.
const (
	FieldText          = "text"
	FieldDocType       = "doc_type"
	FieldCode          = "code"
	FieldIssueDate     = "issue_date"
	FieldEffectiveDate = "effective_date"
	FieldSourceTag     = "source_tag"
	FieldSource        = "source"
	FieldDocumentID    = "document_id"
	FieldChunkID       = "chunk_id"
	FieldQualityScore  = "quality_score"
)

// MetadataFields lists the string metadata fields returned with every hit.
var MetadataFields = []string{FieldDocType, FieldCode, FieldIssueDate, FieldEffectiveDate}

// Get returns the value of a named metadata field.
func (m ChunkMetadata) Get(field string) string {
	switch field {
	case FieldDocType:
		return m.DocType
	case FieldCode:
		return m.Code
	case FieldIssueDate:
		return m.IssueDate
	case FieldEffectiveDate:
		return m.EffectiveDate
	case FieldSourceTag:
		return m.SourceTag
	}
	return ""
}

// Set assigns a named metadata field; unknown names are ignored.
func (m *ChunkMetadata) Set(field, value string) {
	switch field {
	case FieldDocType:
		m.DocType = value
	case FieldCode:
		m.Code = value
	case FieldIssueDate:
		m.IssueDate = value
	case FieldEffectiveDate:
		m.EffectiveDate = value
	case FieldSourceTag:
		m.SourceTag = value
	}
}

// ScoreVector is the per-chunk quality breakdown. Capitalization is reserved
// and always zero; it is not part of the weighted sum.
type ScoreVector struct {
	Length               float64 `json:"length_score"`
	Punctuation          float64 `json:"punctuation"`
	Capitalization       float64 `json:"capitalization"`
	VietnameseCharRatio  float64 `json:"vietnamese_char_ratio"`
	NumericRatio         float64 `json:"numeric_ratio"`
	SpecialCharRatio     float64 `json:"special_char_ratio"`
	SentenceCompleteness float64 `json:"sentence_completeness"`
	SourceQuality        float64 `json:"source_quality"`
	Final                float64 `json:"final"`
}

// VectorRecord is a chunk as handed to the vector store.
type VectorRecord struct {
	ID         string
	Vector     []float32
	Text       string
	Metadata   ChunkMetadata
	DocumentID string
	Source     string
	ChunkID    int
	Score      float64
}

// RetrievalHit is a single ranked search result.
type RetrievalHit struct {
	ID       string        `json:"id"`
	Score    float64       `json:"score"`
	Metadata ChunkMetadata `json:"metadata"`
	Text     string        `json:"text,omitempty"`
	ChunkID  int           `json:"chunk_id,omitempty"`
	Source   string        `json:"source,omitempty"`
}

// Metric is the similarity metric of a vector index.
type Metric string

const (
	MetricL2     Metric = "L2"
	MetricCosine Metric = "COSINE"
	MetricIP     Metric = "IP"
)

// ParseMetric maps a config value to a Metric; empty means L2.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "L2", "EUCLID", "EUCLIDEAN":
		return MetricL2, nil
	case "COSINE":
		return MetricCosine, nil
	case "IP", "DOT":
		return MetricIP, nil
	}
	return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidConfig, s)
}

// Ascending reports whether lower scores rank first.
func (m Metric) Ascending() bool { return m == MetricL2 || m == "" }

// Condition is a single equality predicate on a string metadata field.
type Condition struct {
	Field string
	Value string
}

// Filter is a conjunction of equality conditions. The zero value matches everything.
type Filter struct {
	Conditions []Condition
}

// Eq appends an equality condition and returns the filter.
func (f Filter) Eq(field, value string) Filter {
	f.Conditions = append(append([]Condition(nil), f.Conditions...), Condition{Field: field, Value: value})
	return f
}

// Empty reports whether the filter has no conditions.
func (f Filter) Empty() bool { return len(f.Conditions) == 0 }

// Expr renders the filter as a boolean expression, e.g. `doc_type == "Luật" and code == "12"`.
func (f Filter) Expr() string {
	parts := make([]string, 0, len(f.Conditions))
	for _, c := range f.Conditions {
		parts = append(parts, fmt.Sprintf("%s == %s", c.Field, QuoteValue(c.Value)))
	}
	return strings.Join(parts, " and ")
}

// Match evaluates the filter against record metadata.
func (f Filter) Match(m ChunkMetadata) bool {
	for _, c := range f.Conditions {
		if m.Get(c.Field) != c.Value {
			return false
		}
	}
	return true
}

// QuoteValue double-quotes a string literal for a filter expression.
func QuoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}

// SearchRequest describes one similarity search.
type SearchRequest struct {
	Vector       []float32
	Filter       Filter
	TopK         int
	OutputFields []string
}

// WantsField reports whether a field was requested in OutputFields.
func (r SearchRequest) WantsField(field string) bool {
	for _, f := range r.OutputFields {
		if f == field {
			return true
		}
	}
	return false
}

// Embedder converts free text into a fixed-dimension vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorStore persists vectors with metadata and answers filtered nearest-neighbour queries.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Insert(ctx context.Context, records []VectorRecord) ([]string, error)
	Search(ctx context.Context, req SearchRequest) ([]RetrievalHit, error)
	HasIndex(ctx context.Context) (bool, error)
	Clear(ctx context.Context) error
	Close() error
}

// Synthesizer produces a natural-language answer from a query and retrieved context.
type Synthesizer interface {
	Name() string
	Generate(ctx context.Context, query, passages string) (string, error)
}
