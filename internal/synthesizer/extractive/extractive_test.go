package extractive

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalrag/internal/synthesizer"
)

const passages = "Văn bản: Luật\nMã số: 15/2023/QH15\n" +
	"Nội dung: Luật này có hiệu lực thi hành từ ngày 01 tháng 01 năm 2024. " +
	"Người bệnh có quyền được khám bệnh. Cơ sở khám bệnh phải niêm yết giá."

func TestGenerate_PicksMatchingSentences(t *testing.T) {
	s := New(1, 0)
	got, err := s.Generate(context.Background(), "Luật có hiệu lực thi hành từ ngày nào?", passages)
	require.NoError(t, err)
	assert.Equal(t, "Nội dung: Luật này có hiệu lực thi hành từ ngày 01 tháng 01 năm 2024.", got)
}

func TestGenerate_KeepsOriginalOrder(t *testing.T) {
	s := New(2, 0)
	got, err := s.Generate(context.Background(), "quyền người bệnh hiệu lực thi hành", passages)
	require.NoError(t, err)
	first := strings.Index(got, "hiệu lực")
	second := strings.Index(got, "quyền")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second)
}

func TestGenerate_EmptyContext(t *testing.T) {
	got, err := New(0, 0).Generate(context.Background(), "q", "  \n ")
	require.NoError(t, err)
	assert.Equal(t, synthesizer.NoInformation, got)
}

func TestGenerate_ContextTooLong(t *testing.T) {
	long := strings.Repeat("Điều khoản áp dụng. ", 400)
	got, err := New(0, 0).Generate(context.Background(), "q", long)
	require.NoError(t, err)
	assert.Equal(t, synthesizer.ContextTooLong, got)

	got, err = New(0, 5000).Generate(context.Background(), "điều khoản", long)
	require.NoError(t, err)
	assert.NotEqual(t, synthesizer.ContextTooLong, got)
}

func TestGenerate_OnlyPunctuation(t *testing.T) {
	got, err := New(0, 0).Generate(context.Background(), "q", "...\n!!")
	require.NoError(t, err)
	assert.Equal(t, synthesizer.NoAnswer, got)
}

func TestGenerate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(0, 0).Generate(ctx, "q", passages)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "extractive", New(0, 0).Name())
}
