package synthesizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"legalrag/internal/domain"
)

func hit(docType, code, text string) domain.RetrievalHit {
	return domain.RetrievalHit{
		Metadata: domain.ChunkMetadata{DocType: docType, Code: code, IssueDate: "09/01/2023", EffectiveDate: "01/01/2024"},
		Text:     text,
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 0, EstimateTokens("  \n "))
	assert.Equal(t, 3, EstimateTokens("Luật khám bệnh"))
	assert.Equal(t, 6, EstimateTokens("15/2023/QH15"))
	assert.Equal(t, 3, EstimateTokens("Điều 1."))
}

func TestFormatHit(t *testing.T) {
	got := FormatHit(hit("Luật", "15/2023/QH15", ""))
	assert.Equal(t, "Văn bản: Luật\nMã số: 15/2023/QH15\nNgày ban hành: 09/01/2023\nNgày hiệu lực: 01/01/2024", got)

	got = FormatHit(hit("Luật", "15/2023/QH15", " Điều 1. Phạm vi. "))
	assert.True(t, strings.HasSuffix(got, "\nNội dung: Điều 1. Phạm vi."))
}

func TestBuildContext_KeepsRankOrder(t *testing.T) {
	hits := []domain.RetrievalHit{hit("Luật", "A", ""), hit("Nghị định", "B", "")}
	got := BuildContext(hits, 0)
	assert.Equal(t, FormatHit(hits[0])+"\n\n"+FormatHit(hits[1]), got)
}

func TestBuildContext_StopsAtBudget(t *testing.T) {
	long := strings.Repeat("từ ", 50)
	hits := []domain.RetrievalHit{hit("Luật", "A", "ngắn"), hit("Luật", "B", long), hit("Luật", "C", "ngắn")}
	first := EstimateTokens(FormatHit(hits[0]))

	got := BuildContext(hits, first+10)
	assert.Equal(t, FormatHit(hits[0]), got)
	assert.NotContains(t, got, "Mã số: C")

	assert.Equal(t, "", BuildContext(hits, 1))
	assert.Equal(t, "", BuildContext(nil, 100))
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Luật có hiệu lực khi nào?", "Văn bản: Luật")
	assert.True(t, strings.HasPrefix(p, "Dưới đây là các thông tin văn bản pháp luật."))
	assert.Contains(t, p, "\n\nVăn bản: Luật\n\nCâu hỏi: Luật có hiệu lực khi nào?\n")
	assert.Greater(t, PromptTokens("q", "ctx"), EstimateTokens(BuildPrompt("q", "ctx")))
}
