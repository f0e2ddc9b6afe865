package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalrag/internal/domain"
)

const longText = "Điều 1. Phạm vi điều chỉnh. Luật này quy định về khám bệnh, chữa bệnh.\n\n" +
	"Điều 2. Đối tượng áp dụng! Người bệnh và người hành nghề? Cơ sở khám bệnh.\n" +
	"Điều 3. Giải thích từ ngữ. Trong luật này các từ ngữ dưới đây được hiểu như sau."

var allPolicies = []Policy{OrderOverlap, TitleOverlap, Sentence, Separator}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, Sentence, p)

	p, err = ParsePolicy(" Order_Overlap ")
	require.NoError(t, err)
	assert.Equal(t, OrderOverlap, p)

	_, err = ParsePolicy("paragraph")
	assert.ErrorIs(t, err, domain.ErrUnknownPolicy)
}

func TestSplit_UnknownPolicy(t *testing.T) {
	_, err := Split("abc", Policy("nope"), Params{})
	assert.ErrorIs(t, err, domain.ErrUnknownPolicy)
}

func TestSplit_EmptyText(t *testing.T) {
	for _, p := range allPolicies {
		chunks, err := Split("  \n ", p, Params{})
		require.NoError(t, err, "policy %s", p)
		assert.Empty(t, chunks, "policy %s", p)
	}
}

func TestSplit_ContiguousIDs(t *testing.T) {
	params := Params{MaxCharacters: 40, OverlapSize: 10, Title: "Luật KCB:", MaxWords: 8, Separator: "."}
	for _, p := range allPolicies {
		chunks, err := Split(longText, p, params)
		require.NoError(t, err, "policy %s", p)
		require.NotEmpty(t, chunks, "policy %s", p)
		for i, c := range chunks {
			assert.Equal(t, i+1, c.ChunkID, "policy %s", p)
			assert.NotEmpty(t, strings.TrimSpace(c.Content), "policy %s", p)
		}
	}
}

func TestSplit_Separator(t *testing.T) {
	chunks, err := Split("A***B***  ***C", Separator, Params{})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, domain.Chunk{ChunkID: 1, Content: "A"}, chunks[0])
	assert.Equal(t, domain.Chunk{ChunkID: 2, Content: "B"}, chunks[1])
	assert.Equal(t, domain.Chunk{ChunkID: 3, Content: "C"}, chunks[2])
}

func TestSplit_OrderOverlap(t *testing.T) {
	chunks, err := Split("aaa bbb ccc ddd eee fff", OrderOverlap, Params{MaxCharacters: 8, OverlapSize: 4})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "aaa bbb", chunks[0].Content)
	assert.Equal(t, "bbb ccc ddd", chunks[1].Content)
	assert.Equal(t, "ddd eee fff", chunks[2].Content)
}

func TestSplit_OrderOverlapPrefixIsSuffixOfPrevious(t *testing.T) {
	params := Params{MaxCharacters: 60, OverlapSize: 20}
	raw := NewSplitter(params.MaxCharacters).Split(longText)
	chunks, err := Split(longText, OrderOverlap, params)
	require.NoError(t, err)
	require.Len(t, chunks, len(raw))

	assert.Equal(t, raw[0], chunks[0].Content)
	for i := 1; i < len(chunks); i++ {
		assert.True(t, strings.HasSuffix(chunks[i].Content, raw[i]))
		prefix := strings.TrimSpace(strings.TrimSuffix(chunks[i].Content, raw[i]))
		assert.LessOrEqual(t, utf8.RuneCountInString(prefix), params.OverlapSize)
		assert.True(t, strings.HasSuffix(raw[i-1], prefix), "chunk %d prefix %q", i+1, prefix)
	}
}

func TestSplit_OrderOverlapZeroOverlap(t *testing.T) {
	chunks, err := Split("aaa bbb ccc ddd", OrderOverlap, Params{MaxCharacters: 8})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "ccc ddd", chunks[1].Content)
}

func TestSplit_TitleOverlap(t *testing.T) {
	chunks, err := Split("aaa bbb ccc ddd eee fff", TitleOverlap, Params{MaxCharacters: 8, Title: "Thuốc X:"})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "aaa bbb", chunks[0].Content)
	assert.Equal(t, "Thuốc X: ccc ddd", chunks[1].Content)
	assert.Equal(t, "Thuốc X: eee fff", chunks[2].Content)
}

func TestSplit_TitleOverlapNoTitle(t *testing.T) {
	chunks, err := Split("aaa bbb ccc ddd", TitleOverlap, Params{MaxCharacters: 8})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "ccc ddd", chunks[1].Content)
}

func TestSplit_SentenceBudgetWithOverlap(t *testing.T) {
	text := "Một hai ba. Bốn năm sáu. Bảy tám chín. Mười một hai."
	chunks, err := Split(text, Sentence, Params{MaxWords: 6, OverlapSentences: 1})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "Một hai ba. Bốn năm sáu.", chunks[0].Content)
	assert.Equal(t, "Bốn năm sáu. Bảy tám chín.", chunks[1].Content)
	assert.Equal(t, "Bảy tám chín. Mười một hai.", chunks[2].Content)
}

func TestSplit_SentenceNoOverlap(t *testing.T) {
	text := "Một hai ba. Bốn năm sáu. Bảy tám chín."
	chunks, err := Split(text, Sentence, Params{MaxWords: 6})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Một hai ba. Bốn năm sáu.", chunks[0].Content)
	assert.Equal(t, "Bảy tám chín.", chunks[1].Content)
}

func TestSplit_SentenceOversized(t *testing.T) {
	chunks, err := Split("một hai ba bốn. năm.", Sentence, Params{MaxWords: 2, OverlapSentences: 1})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "một hai ba bốn.", chunks[0].Content)
	assert.Equal(t, "năm.", chunks[1].Content)
}

func TestSplit_SentenceBudgetHolds(t *testing.T) {
	chunks, err := Split(longText, Sentence, Params{MaxWords: 12, OverlapSentences: 2})
	require.NoError(t, err)
	for _, c := range chunks {
		sentences := SplitSentences(c.Content)
		if len(sentences) > 1 {
			assert.LessOrEqual(t, wordCount(c.Content), 12, "chunk %q", c.Content)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("Điều 1. Phạm vi! Có áp dụng? ... phần còn lại")
	assert.Equal(t, []string{"Điều 1.", "Phạm vi!", "Có áp dụng?", "phần còn lại"}, got)
	assert.Empty(t, SplitSentences(" ... "))
}

func TestChunker_Chunk(t *testing.T) {
	c, err := New(TitleOverlap, Params{MaxCharacters: 8})
	require.NoError(t, err)
	assert.Equal(t, TitleOverlap, c.Policy())

	chunks, err := c.Chunk(domain.Document{ID: "doc-1", Title: "T", Content: "aaa bbb ccc ddd"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, domain.Chunk{DocumentID: "doc-1", ChunkID: 1, Content: "aaa bbb"}, chunks[0])
	assert.Equal(t, domain.Chunk{DocumentID: "doc-1", ChunkID: 2, Content: "T ccc ddd"}, chunks[1])
}

func TestChunker_DefaultsToSentence(t *testing.T) {
	c, err := New("", Params{})
	require.NoError(t, err)
	assert.Equal(t, Sentence, c.Policy())

	_, err = New("bogus", Params{})
	assert.ErrorIs(t, err, domain.ErrUnknownPolicy)
}
