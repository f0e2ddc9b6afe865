package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// boundary levels, coarsest first
type level int

const (
	levelParagraph level = iota
	levelLine
	levelSentence
	levelWord
	levelChar
)

var boundaryRe = map[level]*regexp.Regexp{
	levelParagraph: regexp.MustCompile(`\n[ \t]*\n\s*`),
	levelLine:      regexp.MustCompile(`\n\s*`),
	levelSentence:  regexp.MustCompile(`[.!?]+["'”’)\]]*\s+`),
	levelWord:      regexp.MustCompile(`\s+`),
}

// Splitter partitions text into trimmed segments of at most Capacity
// characters. It breaks at the coarsest natural boundary that fits
// (paragraph, line, sentence, word) and only falls back to a hard cut
// between characters when a single word is longer than Capacity.
type Splitter struct {
	Capacity int
}

// NewSplitter returns a splitter for the given capacity in characters.
func NewSplitter(capacity int) Splitter {
	return Splitter{Capacity: capacity}
}

// Split returns the ordered segments of text. Blank segments are dropped.
func (s Splitter) Split(text string) []string {
	var out []string
	if s.Capacity <= 0 {
		appendTrimmed(&out, text)
		return out
	}
	s.split(text, levelParagraph, &out)
	return out
}

// Tail returns the last segment Split would produce, i.e. a trailing part of
// text no longer than Capacity that respects the same boundaries.
func (s Splitter) Tail(text string) string {
	parts := s.Split(text)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func (s Splitter) split(text string, lvl level, out *[]string) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) <= s.Capacity {
		appendTrimmed(out, text)
		return
	}
	if lvl == levelChar {
		s.hardCut(strings.TrimSpace(text), out)
		return
	}
	units := segment(text, boundaryRe[lvl])
	if len(units) <= 1 {
		s.split(text, lvl+1, out)
		return
	}

	var buf strings.Builder
	bufLen := 0
	flush := func() {
		appendTrimmed(out, buf.String())
		buf.Reset()
		bufLen = 0
	}
	for _, u := range units {
		n := utf8.RuneCountInString(u)
		fit := utf8.RuneCountInString(strings.TrimRightFunc(u, unicode.IsSpace))
		if bufLen+fit <= s.Capacity {
			buf.WriteString(u)
			bufLen += n
			continue
		}
		if bufLen > 0 {
			flush()
		}
		if utf8.RuneCountInString(strings.TrimSpace(u)) <= s.Capacity {
			buf.WriteString(u)
			bufLen = n
			continue
		}
		s.split(u, lvl+1, out)
	}
	if bufLen > 0 {
		flush()
	}
}

func (s Splitter) hardCut(text string, out *[]string) {
	runes := []rune(text)
	for start := 0; start < len(runes); start += s.Capacity {
		end := start + s.Capacity
		if end > len(runes) {
			end = len(runes)
		}
		appendTrimmed(out, string(runes[start:end]))
	}
}

// segment cuts text after every boundary match; the pieces concatenate back to text.
func segment(text string, re *regexp.Regexp) []string {
	var units []string
	prev := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if loc[1] <= prev {
			continue
		}
		units = append(units, text[prev:loc[1]])
		prev = loc[1]
	}
	if prev < len(text) {
		units = append(units, text[prev:])
	}
	return units
}

func appendTrimmed(out *[]string, s string) {
	if t := strings.TrimSpace(s); t != "" {
		*out = append(*out, t)
	}
}
