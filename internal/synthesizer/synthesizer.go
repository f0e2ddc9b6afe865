// Package synthesizer holds what every answer synthesizer shares: the fixed
// user-facing answers, prompt assembly and token budgeting.
package synthesizer

import (
	"fmt"
	"regexp"
	"strings"

	"legalrag/internal/domain"
)

// Fixed answers returned instead of errors.
const (
	// ContextTooLong is returned when the prompt exceeds the token budget.
	ContextTooLong = "Ngữ cảnh quá dài, không thể xử lý. Vui lòng thử câu hỏi ngắn hơn hoặc giảm số chunk."
	// NoAnswer is returned when the model produced no text.
	NoAnswer = "Không tìm thấy câu trả lời cụ thể."
	// NoInformation is returned when there is no context to answer from.
	NoInformation = "Không tìm thấy thông tin phù hợp."
)

// Budgets in estimated tokens.
const (
	DefaultContextTokens   = 700
	DefaultMaxPromptTokens = 1024
)

// SystemPrompt frames the model as a Vietnamese legal assistant.
const SystemPrompt = "Bạn là trợ lý hiểu luật pháp Việt Nam."

const promptTemplate = "Dưới đây là các thông tin văn bản pháp luật. Trả lời câu hỏi người dùng dựa trên dữ liệu:\n\n%s\n\nCâu hỏi: %s\n"

// tokenRe approximates BPE pre-tokenization: runs of letters or digits and
// single punctuation marks.
var tokenRe = regexp.MustCompile(`[\p{L}\p{M}]+|\p{N}+|[^\s\p{L}\p{M}\p{N}]`)

// EstimateTokens returns an approximate token count of s.
func EstimateTokens(s string) int {
	return len(tokenRe.FindAllStringIndex(s, -1))
}

// FormatHit renders one hit as a context block.
func FormatHit(h domain.RetrievalHit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Văn bản: %s\nMã số: %s\nNgày ban hành: %s\nNgày hiệu lực: %s",
		h.Metadata.DocType, h.Metadata.Code, h.Metadata.IssueDate, h.Metadata.EffectiveDate)
	if t := strings.TrimSpace(h.Text); t != "" {
		b.WriteString("\nNội dung: ")
		b.WriteString(t)
	}
	return b.String()
}

// BuildContext joins hit blocks in rank order and stops before the first
// block that would exceed maxTokens. maxTokens <= 0 selects DefaultContextTokens.
func BuildContext(hits []domain.RetrievalHit, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = DefaultContextTokens
	}
	var blocks []string
	used := 0
	for _, h := range hits {
		block := FormatHit(h)
		n := EstimateTokens(block)
		if used+n > maxTokens {
			break
		}
		blocks = append(blocks, block)
		used += n
	}
	return strings.Join(blocks, "\n\n")
}

// BuildPrompt renders the user prompt for query over passages.
func BuildPrompt(query, passages string) string {
	return fmt.Sprintf(promptTemplate, passages, query)
}

// PromptTokens estimates the full prompt size including the system prompt.
func PromptTokens(query, passages string) int {
	return EstimateTokens(SystemPrompt) + EstimateTokens(BuildPrompt(query, passages))
}
