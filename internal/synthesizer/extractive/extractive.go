// Package extractive answers offline by selecting the context sentences that
// best match the question.
package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"legalrag/internal/chunker"
	"legalrag/internal/domain"
	"legalrag/internal/logger"
	"legalrag/internal/synthesizer"
)

// DefaultMaxSentences is the answer length when unconfigured.
const DefaultMaxSentences = 3

// Synthesizer ranks sentences by query-term overlap, then by normalized word
// frequency across the context.
type Synthesizer struct {
	maxSentences    int
	maxPromptTokens int
	tokenPattern    *regexp.Regexp
	stopwords       map[string]struct{}
}

var _ domain.Synthesizer = (*Synthesizer)(nil)

// New creates an extractive synthesizer. Zero values select the defaults.
func New(maxSentences, maxPromptTokens int) *Synthesizer {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	if maxPromptTokens <= 0 {
		maxPromptTokens = synthesizer.DefaultMaxPromptTokens
	}
	return &Synthesizer{
		maxSentences:    maxSentences,
		maxPromptTokens: maxPromptTokens,
		tokenPattern:    regexp.MustCompile(`[\p{L}\p{M}\p{N}]+`),
		stopwords:       defaultStopwords(),
	}
}

// Name returns the identifier of this synthesizer.
func (s *Synthesizer) Name() string { return "extractive" }

// Generate returns the selected sentences in their original order.
func (s *Synthesizer) Generate(ctx context.Context, query, passages string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(passages) == "" {
		return synthesizer.NoInformation, nil
	}
	if n := synthesizer.PromptTokens(query, passages); n > s.maxPromptTokens {
		logger.Warn("prompt has ~%d tokens, budget is %d", n, s.maxPromptTokens)
		return synthesizer.ContextTooLong, nil
	}

	var sentences []string
	for _, line := range strings.Split(passages, "\n") {
		sentences = append(sentences, chunker.SplitSentences(line)...)
	}
	if len(sentences) == 0 {
		return synthesizer.NoAnswer, nil
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	queryTerms := map[string]struct{}{}
	for _, tok := range s.tokens(query) {
		queryTerms[tok] = struct{}{}
	}

	type pair struct {
		idx     int
		overlap int
		score   float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		p := pair{idx: i}
		seen := map[string]struct{}{}
		for _, tok := range toks {
			p.score += freq[tok]
			if _, ok := queryTerms[tok]; ok {
				if _, dup := seen[tok]; !dup {
					p.overlap++
					seen[tok] = struct{}{}
				}
			}
		}
		if l := float64(len(toks)); l > 0 {
			p.score /= math.Sqrt(l)
		}
		scores[i] = p
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].overlap != scores[j].overlap {
			return scores[i].overlap > scores[j].overlap
		}
		return scores[i].score > scores[j].score
	})

	n := s.maxSentences
	if n > len(scores) {
		n = len(scores)
	}
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

func (s *Synthesizer) tokens(text string) []string {
	raw := s.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := s.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"và", "của", "là", "các", "cho", "có", "được", "trong", "với", "theo", "này", "khi",
		"những", "một", "để", "từ", "tại", "về", "thì", "mà", "hoặc", "nếu", "đã", "sẽ",
		"nào", "gì", "ai", "bao", "nhiêu", "không",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
