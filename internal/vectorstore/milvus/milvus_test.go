package milvus

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalrag/internal/domain"
	"legalrag/internal/logger"
)

func TestNew_Defaults(t *testing.T) {
	s := New(nil, Config{})
	assert.Equal(t, DefaultCollection, s.config.Collection)
	assert.Equal(t, domain.MetricL2, s.config.Metric)
	assert.Equal(t, DefaultNList, s.config.NList)
	assert.Equal(t, DefaultNProbe, s.config.NProbe)
	assert.NoError(t, s.Close())
}

func TestColumns(t *testing.T) {
	s := New(nil, Config{})
	s.dimension = 2
	records := []domain.VectorRecord{
		{
			Vector:     []float32{1, 2},
			Text:       "Điều 1. Phạm vi điều chỉnh.",
			ChunkID:    1,
			DocumentID: "d1",
			Source:     "luat.html",
			Metadata:   domain.ChunkMetadata{DocType: "Luật", Code: "15/2023/QH15", SourceTag: "vac"},
		},
		{Vector: []float32{3, 4}, Text: "Điều 2.", ChunkID: 2, DocumentID: "d1"},
	}

	cols, err := s.columns(records)
	require.NoError(t, err)
	require.Len(t, cols, 2+len(varCharOrder))

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name()
		assert.Equal(t, 2, c.Len())
	}
	assert.Equal(t, FieldEmbedding, names[0])
	assert.Equal(t, domain.FieldChunkID, names[1])
	assert.Equal(t, varCharOrder, names[2:])

	code, ok := cols[2+indexOf(domain.FieldCode)].(*entity.ColumnVarChar)
	require.True(t, ok)
	assert.Equal(t, []string{"15/2023/QH15", ""}, code.Data())

	chunkIDs, ok := cols[1].(*entity.ColumnInt64)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2}, chunkIDs.Data())
}

func indexOf(name string) int {
	for i, n := range varCharOrder {
		if n == name {
			return i
		}
	}
	return -1
}

func TestColumns_DimensionMismatch(t *testing.T) {
	s := New(nil, Config{})
	s.dimension = 3
	_, err := s.columns([]domain.VectorRecord{{Vector: []float32{1}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestColumns_WarnsOnTruncatedText(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	s := New(nil, Config{})
	s.dimension = 1
	limit := varCharLimits[domain.FieldText]
	records := []domain.VectorRecord{
		{Vector: []float32{1}, Text: strings.Repeat("a", limit+808), ChunkID: 4, Source: "nghi-dinh.txt"},
	}
	cols, err := s.columns(records)
	require.NoError(t, err)
	text, ok := cols[2+indexOf(domain.FieldText)].(*entity.ColumnVarChar)
	require.True(t, ok)
	assert.Len(t, text.Data()[0], limit)
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "nghi-dinh.txt chunk 4: text truncated")

	buf.Reset()
	_, err = s.columns([]domain.VectorRecord{{Vector: []float32{1}, Text: "Điều 1."}})
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 8))
	assert.Equal(t, "ab", truncate("abc", 2))

	long := strings.Repeat("đ", 40)
	got := truncate(long, 64)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 64)
	assert.Equal(t, strings.Repeat("đ", 32), got)

	got = truncate("ấấ", 4)
	assert.Equal(t, "ấ", got)
}

func TestColumnStrings(t *testing.T) {
	assert.Equal(t, []string{"7", "42"}, columnStrings(entity.NewColumnInt64("id", []int64{7, 42})))
	assert.Equal(t, []string{"a"}, columnStrings(entity.NewColumnVarChar("id", []string{"a"})))
	assert.Nil(t, columnStrings(nil))
}

func TestSearchFields(t *testing.T) {
	got := searchFields(domain.SearchRequest{})
	assert.Equal(t, []string{
		domain.FieldDocType, domain.FieldCode, domain.FieldIssueDate, domain.FieldEffectiveDate,
		domain.FieldChunkID, domain.FieldSource,
	}, got)

	got = searchFields(domain.SearchRequest{OutputFields: []string{domain.FieldText, domain.FieldSource}})
	assert.Equal(t, []string{domain.FieldText, domain.FieldSource, domain.FieldChunkID}, got)
}

func TestMetricType(t *testing.T) {
	assert.Equal(t, entity.L2, metricType(domain.MetricL2))
	assert.Equal(t, entity.L2, metricType(""))
	assert.Equal(t, entity.COSINE, metricType(domain.MetricCosine))
	assert.Equal(t, entity.IP, metricType(domain.MetricIP))
}

func TestSchema(t *testing.T) {
	s := New(nil, Config{Collection: "c"})
	s.dimension = 384
	schema := s.schema()
	assert.Equal(t, "c", schema.CollectionName)
	require.Len(t, schema.Fields, 3+len(varCharOrder))
	assert.True(t, schema.Fields[0].PrimaryKey)
	assert.True(t, schema.Fields[0].AutoID)
	assert.Equal(t, "384", schema.Fields[1].TypeParams[entity.TypeParamDim])
}
