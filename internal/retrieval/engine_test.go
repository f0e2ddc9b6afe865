package retrieval

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalrag/internal/domain"
	"legalrag/internal/embedding/hashing"
	"legalrag/internal/logger"
	"legalrag/internal/vectorstore/memory"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) Name() string   { return "stub" }
func (s stubEmbedder) Dimension() int { return len(s.vec) }
func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

// stubStore records the last request and returns canned hits.
type stubStore struct {
	domain.VectorStore
	hits     []domain.RetrievalHit
	err      error
	hasIndex bool
	indexErr error
	last     domain.SearchRequest
}

func (s *stubStore) HasIndex(context.Context) (bool, error) { return s.hasIndex, s.indexErr }
func (s *stubStore) Search(_ context.Context, req domain.SearchRequest) ([]domain.RetrievalHit, error) {
	s.last = req
	return s.hits, s.err
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })
	return &buf
}

func seed(t *testing.T, e domain.Embedder) *memory.Storage {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStorage(domain.MetricL2)
	require.NoError(t, store.Init(ctx, e.Dimension()))
	texts := []struct{ text, docType, code string }{
		{"Luật khám bệnh chữa bệnh quy định quyền của người bệnh", "Luật", "15/2023/QH15"},
		{"Nghị định hướng dẫn giấy phép hành nghề khám bệnh", "Nghị định", "96/2023/NĐ-CP"},
		{"Thông tư quy định hồ sơ bệnh án điện tử", "Thông tư", "46/2018/TT-BYT"},
	}
	var records []domain.VectorRecord
	for i, x := range texts {
		v, err := e.Embed(ctx, x.text)
		require.NoError(t, err)
		records = append(records, domain.VectorRecord{
			Vector:   v,
			Text:     x.text,
			ChunkID:  i + 1,
			Metadata: domain.ChunkMetadata{DocType: x.docType, Code: x.code},
		})
	}
	_, err := store.Insert(ctx, records)
	require.NoError(t, err)
	return store
}

func TestFilters(t *testing.T) {
	assert.True(t, Filters{}.Filter().Empty())
	assert.True(t, Filters{DocType: "  "}.Filter().Empty())
	assert.Equal(t, `doc_type == "Luật" and code == "12"`, Filters{DocType: "Luật", Code: "12"}.Filter().Expr())
	assert.Equal(t, `code == "12"`, Filters{Code: "12"}.Filter().Expr())
}

func TestRetrieve_RanksByRelevance(t *testing.T) {
	emb := hashing.NewEmbedder(256)
	engine := NewEngine(emb, seed(t, emb), Config{IncludeText: true})

	hits, err := engine.Retrieve(context.Background(), "hồ sơ bệnh án điện tử", Filters{}, 0)
	require.NoError(t, err)
	require.Len(t, hits, DefaultTopK)
	assert.Equal(t, "Thông tư", hits[0].Metadata.DocType)
	assert.Contains(t, hits[0].Text, "bệnh án")
}

func TestRetrieve_Filtered(t *testing.T) {
	emb := hashing.NewEmbedder(256)
	engine := NewEngine(emb, seed(t, emb), Config{})

	hits, err := engine.Retrieve(context.Background(), "khám bệnh", Filters{DocType: "Nghị định", Code: "96/2023/NĐ-CP"}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "96/2023/NĐ-CP", hits[0].Metadata.Code)
	assert.Empty(t, hits[0].Text)

	hits, err = engine.Retrieve(context.Background(), "khám bệnh", Filters{DocType: "Quyết định"}, 5)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestRetrieve_PreservesStoreOrder(t *testing.T) {
	store := &stubStore{hasIndex: true, hits: []domain.RetrievalHit{
		{ID: "b", Score: 0.9}, {ID: "a", Score: 0.1}, {ID: "c", Score: 0.5},
	}}
	engine := NewEngine(stubEmbedder{vec: []float32{1}}, store, Config{TopK: 7, IncludeText: true})

	hits, err := engine.Retrieve(context.Background(), "q", Filters{Code: "x"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, []string{hits[0].ID, hits[1].ID, hits[2].ID})
	assert.Equal(t, 7, store.last.TopK)
	assert.Equal(t, `code == "x"`, store.last.Filter.Expr())
	assert.True(t, store.last.WantsField(domain.FieldText))
	assert.True(t, store.last.WantsField(domain.FieldEffectiveDate))
}

func TestRetrieve_NilHitsBecomeEmpty(t *testing.T) {
	engine := NewEngine(stubEmbedder{vec: []float32{1}}, &stubStore{hasIndex: true}, Config{})
	hits, err := engine.Retrieve(context.Background(), "q", Filters{}, 1)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestRetrieve_MissingIndexWarns(t *testing.T) {
	buf := captureLog(t)
	store := &stubStore{hits: []domain.RetrievalHit{{ID: "1"}}}
	engine := NewEngine(stubEmbedder{vec: []float32{1}}, store, Config{})

	hits, err := engine.Retrieve(context.Background(), "q", Filters{}, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Contains(t, buf.String(), "[WARN]")

	buf.Reset()
	store.indexErr = errors.New("describe failed")
	_, err = engine.Retrieve(context.Background(), "q", Filters{}, 1)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "describe failed")
}

func TestRetrieve_EmbedderFailure(t *testing.T) {
	engine := NewEngine(stubEmbedder{err: context.Canceled}, &stubStore{hasIndex: true}, Config{})
	_, err := engine.Retrieve(context.Background(), "q", Filters{}, 1)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetrieve_StoreFailure(t *testing.T) {
	cause := errors.New("unavailable")
	store := &stubStore{hasIndex: true, err: cause}
	engine := NewEngine(stubEmbedder{vec: []float32{1}}, store, Config{})
	_, err := engine.Retrieve(context.Background(), "q", Filters{}, 1)
	assert.ErrorIs(t, err, domain.ErrVectorStore)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, domain.ErrEmbedding)
}
