package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalrag/internal/domain"
	"legalrag/internal/retrieval"
	"legalrag/internal/service"
)

type fakePort struct {
	filters retrieval.Filters
	topK    int
	asked   bool
	err     error
}

func (f *fakePort) Query(_ context.Context, text string, filters retrieval.Filters, topK int) (service.QueryResult, error) {
	f.filters, f.topK = filters, topK
	if f.err != nil {
		return service.QueryResult{}, f.err
	}
	return service.QueryResult{Query: text, Hits: []domain.RetrievalHit{
		{ID: "1", Score: 0.1, Metadata: domain.ChunkMetadata{DocType: "Luật", Code: "15/2023/QH15"}, Text: "Điều 1. Phạm vi. Thuốc được bảo quản."},
		{ID: "2", Score: 0.4, Text: "Điều 2. Khác."},
	}}, nil
}

func (f *fakePort) Ask(ctx context.Context, text string, filters retrieval.Filters, topK int) (service.QueryResult, error) {
	f.asked = true
	res, err := f.Query(ctx, text, filters, topK)
	res.Answer = "Thuốc được bảo quản."
	return res, err
}

func typed(t *testing.T, m Model, query string) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = next.(Model)
	m.input.SetValue(query)
	return m
}

func press(t *testing.T, m Model, key tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(key)
	m = next.(Model)
	require.NotNil(t, cmd)
	next, _ = m.Update(cmd())
	return next.(Model)
}

func TestModel_SearchShowsHits(t *testing.T) {
	port := &fakePort{}
	opts := Options{Filters: retrieval.Filters{DocType: "Luật"}, TopK: 2}
	m := typed(t, New(context.Background(), port, opts, "2 chunks"), "bảo quản thuốc")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, opts.Filters, port.filters)
	assert.Equal(t, 2, port.topK)
	assert.False(t, port.asked)
	require.Len(t, m.hits, 2)
	assert.Contains(t, m.status, "2 results")
	assert.Contains(t, m.renderCurrent(), "Mã số: 15/2023/QH15")
	assert.Contains(t, m.View(), "doc_type=Luật")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, next.(Model).cursor)
}

func TestModel_AskShowsAnswer(t *testing.T) {
	port := &fakePort{}
	m := typed(t, New(context.Background(), port, Options{CanAsk: true}, ""), "bảo quản thuốc")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	assert.True(t, port.asked)
	assert.Equal(t, "Thuốc được bảo quản.", m.answer)
	assert.Contains(t, m.renderCurrent(), "Trả lời: ")
}

func TestModel_AskDisabled(t *testing.T) {
	port := &fakePort{}
	m := typed(t, New(context.Background(), port, Options{}, ""), "x")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlA})
	assert.Nil(t, cmd)
	assert.False(t, port.asked)
	assert.Equal(t, "No synthesizer configured.", next.(Model).status)
}

func TestModel_ErrorStatus(t *testing.T) {
	port := &fakePort{err: errors.New("store down")}
	m := typed(t, New(context.Background(), port, Options{}, ""), "x")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "Error: store down", m.status)
	assert.Empty(t, m.hits)
}

func TestModel_NotFound(t *testing.T) {
	m := New(context.Background(), &fakePort{}, Options{}, "")
	next, _ := m.Update(resultMsg{query: "x", result: service.QueryResult{NotFound: true, Message: service.NotFoundMessage}})
	m = next.(Model)
	assert.Equal(t, service.NotFoundMessage, m.status)
	assert.Equal(t, "No results yet.", m.renderCurrent())
}

func TestModel_BlankInputDoesNothing(t *testing.T) {
	m := typed(t, New(context.Background(), &fakePort{}, Options{}, ""), "   ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Điều 1. Phạm vi. Thuốc được bảo quản.", "bảo quản")
	assert.Contains(t, out, "Điều 1.")
	assert.Contains(t, out, "Thuốc được bảo quản.")
	assert.Equal(t, "", highlightBestSentence("", "x"))
}

func TestMetadataLine(t *testing.T) {
	assert.Equal(t, "Văn bản: Luật | Hiệu lực: 2024-01-01",
		metadataLine(domain.ChunkMetadata{DocType: "Luật", EffectiveDate: "2024-01-01"}))
}
