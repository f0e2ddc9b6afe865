// Package chunker splits normalized document text into ordered, numbered chunks.
package chunker

import (
	"fmt"
	"strings"

	"legalrag/internal/domain"
)

// Policy selects a chunking strategy.
type Policy string

const (
	// OrderOverlap prefixes every chunk after the first with the tail of the previous raw chunk.
	OrderOverlap Policy = "order_overlap"
	// TitleOverlap prefixes every chunk after the first with a fixed title.
	TitleOverlap Policy = "title_overlap"
	// Sentence packs whole sentences under a word budget with sentence overlap.
	Sentence Policy = "sentence"
	// Separator splits on a literal separator string.
	Separator Policy = "separator"
)

// Defaults used when a Params field is zero.
const (
	DefaultMaxCharacters    = 1000
	DefaultOverlapSize      = 50
	DefaultMaxWords         = 100
	DefaultOverlapSentences = 1
	DefaultSeparator        = "***"
)

// Params configures all policies; each policy reads only the fields it needs.
type Params struct {
	MaxCharacters    int
	OverlapSize      int
	Title            string
	MaxWords         int
	OverlapSentences int
	Separator        string
}

func (p Params) withDefaults() Params {
	if p.MaxCharacters <= 0 {
		p.MaxCharacters = DefaultMaxCharacters
	}
	if p.OverlapSize < 0 {
		p.OverlapSize = 0
	}
	if p.MaxWords <= 0 {
		p.MaxWords = DefaultMaxWords
	}
	if p.OverlapSentences < 0 {
		p.OverlapSentences = 0
	}
	if p.Separator == "" {
		p.Separator = DefaultSeparator
	}
	return p
}

// ParsePolicy maps a config value to a Policy. Empty selects Sentence.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Sentence, nil
	case OrderOverlap, TitleOverlap, Sentence, Separator:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownPolicy, s)
}

// Split chunks text under the given policy. Chunk ids start at 1 and are
// contiguous over the non-blank chunks kept. Blank text yields no chunks.
func Split(text string, policy Policy, params Params) ([]domain.Chunk, error) {
	p := params.withDefaults()
	var parts []string
	switch policy {
	case OrderOverlap:
		parts = splitOrderOverlap(text, p.MaxCharacters, p.OverlapSize)
	case TitleOverlap:
		parts = splitTitleOverlap(text, p.MaxCharacters, p.Title)
	case Sentence:
		parts = splitSentenceBudget(text, p.MaxWords, p.OverlapSentences)
	case Separator:
		parts = splitSeparator(text, p.Separator)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownPolicy, policy)
	}
	return number(parts), nil
}

func number(parts []string) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{ChunkID: len(chunks) + 1, Content: part})
	}
	return chunks
}

func splitOrderOverlap(text string, maxChars, overlapSize int) []string {
	raw := NewSplitter(maxChars).Split(text)
	if overlapSize <= 0 {
		return raw
	}
	overlap := NewSplitter(overlapSize)
	out := make([]string, len(raw))
	for i, c := range raw {
		if i > 0 {
			c = joinPrefix(overlap.Tail(raw[i-1]), c)
		}
		out[i] = c
	}
	return out
}

func splitTitleOverlap(text string, maxChars int, title string) []string {
	raw := NewSplitter(maxChars).Split(text)
	out := make([]string, len(raw))
	for i, c := range raw {
		if i > 0 {
			c = joinPrefix(title, c)
		}
		out[i] = c
	}
	return out
}

func splitSeparator(text, sep string) []string {
	var out []string
	for _, seg := range strings.Split(text, sep) {
		if s := strings.TrimSpace(seg); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// joinPrefix puts prefix in front of s, adding a space only when neither
// side already has whitespace at the seam.
func joinPrefix(prefix, s string) string {
	if prefix == "" {
		return s
	}
	if strings.HasSuffix(prefix, " ") || strings.HasSuffix(prefix, "\n") || strings.HasPrefix(s, " ") {
		return prefix + s
	}
	return prefix + " " + s
}

// Chunker applies one policy to whole documents.
type Chunker struct {
	policy Policy
	params Params
}

var _ domain.Chunker = (*Chunker)(nil)

// New creates a Chunker; it fails only for an unknown policy.
func New(policy Policy, params Params) (*Chunker, error) {
	parsed, err := ParsePolicy(string(policy))
	if err != nil {
		return nil, err
	}
	return &Chunker{policy: parsed, params: params}, nil
}

// Policy returns the configured policy.
func (c *Chunker) Policy() Policy { return c.policy }

// Chunk splits the document content. For TitleOverlap without a configured
// title the document title is used.
func (c *Chunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	p := c.params
	if c.policy == TitleOverlap && p.Title == "" {
		p.Title = document.Title
	}
	chunks, err := Split(document.Content, c.policy, p)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].DocumentID = document.ID
	}
	return chunks, nil
}
