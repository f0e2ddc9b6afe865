package scorer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const dosage = "Liều dùng: 2 viên mỗi ngày trong 7 ngày liên tục để đạt hiệu quả tối ưu cho người lớn."

func TestScore_Blank(t *testing.T) {
	assert.Equal(t, 0.0, Score("", "any"))
	assert.Equal(t, 0.0, Score(" \n\t", "vac"))
}

func TestScore_WellFormedTrustedSentence(t *testing.T) {
	assert.Greater(t, Score(dosage, "vac"), 0.5)
}

func TestScore_SourceOrdering(t *testing.T) {
	texts := []string{dosage, "abc", "1234 5678 ###", strings.Repeat("Điều khoản áp dụng. ", 80)}
	for _, text := range texts {
		vac := Score(text, "vac")
		assert.GreaterOrEqual(t, vac, Score(text, "chat"), "text %q", text)
		assert.GreaterOrEqual(t, vac, Score(text, "public"), "text %q", text)
		assert.GreaterOrEqual(t, Score(text, "public"), Score(text, "chat"), "text %q", text)
	}
}

func TestScore_SourceTagNormalized(t *testing.T) {
	assert.Equal(t, Score(dosage, "vac"), Score(dosage, "  VAC "))
	assert.Equal(t, 1.0, Breakdown(dosage, "TTDT").SourceQuality)
	assert.Equal(t, 0.5, Breakdown(dosage, "").SourceQuality)
}

func TestScore_Range(t *testing.T) {
	texts := []string{
		"a", "?", "!!!", "@#$%^&*()", "0123456789",
		dosage,
		strings.Repeat("từ ", 1000),
		strings.Repeat("Một câu rất ngắn. ", 5),
	}
	for _, text := range texts {
		for _, tag := range []string{"vac", "chat", "x"} {
			s := Score(text, tag)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}
}

func TestBreakdown_SubScores(t *testing.T) {
	v := Breakdown(dosage, "vac")

	assert.InDelta(t, 20.0/50, v.Length, 1e-9)
	assert.Equal(t, 1.0, v.Punctuation)
	assert.Equal(t, 1.0, v.VietnameseCharRatio)
	assert.Equal(t, 1.0, v.SentenceCompleteness)
	assert.Equal(t, 0.0, v.Capitalization)
	assert.Less(t, v.NumericRatio, 1.0)
	assert.Less(t, v.SpecialCharRatio, 1.0)
	assert.InDelta(t, Score(dosage, "vac"), v.Final, 1e-12)
}

func TestBreakdown_Completeness(t *testing.T) {
	assert.Equal(t, 1.0, Breakdown(`Anh ấy nói "xong."  `, "").SentenceCompleteness)
	assert.Equal(t, 1.0, Breakdown("Xong rồi?'", "").SentenceCompleteness)
	assert.Equal(t, 0.3, Breakdown("chưa xong", "").SentenceCompleteness)
}

func TestBreakdown_NoTerminatorLeavesPunctuationZero(t *testing.T) {
	assert.Equal(t, 0.0, Breakdown("không có dấu câu", "").Punctuation)
}

func TestLengthScore(t *testing.T) {
	assert.Equal(t, 0.5, lengthScore(25))
	assert.Equal(t, 1.0, lengthScore(50))
	assert.Equal(t, 1.0, lengthScore(120))
	assert.Equal(t, 1.0, lengthScore(200))
	assert.Equal(t, 0.5, lengthScore(400))
	assert.Equal(t, 0.0, lengthScore(900))
}
