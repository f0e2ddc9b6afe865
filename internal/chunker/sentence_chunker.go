package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// SplitSentences splits text on runs of '.', '!' and '?', keeping the
// terminators. Trailing text without a terminator is its own sentence;
// fragments without any letter or digit are dropped.
func SplitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		addSentence(&sentences, text[loc[0]:loc[1]])
		last = loc[1]
	}
	addSentence(&sentences, text[last:])
	return sentences
}

func addSentence(out *[]string, s string) {
	s = strings.TrimSpace(s)
	if strings.IndexFunc(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
		return
	}
	*out = append(*out, s)
}

// splitSentenceBudget packs sentences greedily until the next one would
// exceed maxWords, then starts the next chunk with the last overlap
// sentences of the closed one. The word budget wins over the overlap: carried
// sentences are dropped from the front if they leave no room. A single
// sentence longer than maxWords becomes its own chunk.
func splitSentenceBudget(text string, maxWords, overlap int) []string {
	sentences := SplitSentences(text)
	var chunks []string
	var cur []string
	curWords := 0
	for _, s := range sentences {
		wc := wordCount(s)
		if curWords+wc > maxWords && len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, " "))
			start := len(cur) - overlap
			if start < 0 {
				start = 0
			}
			cur = append([]string(nil), cur[start:]...)
			curWords = 0
			for _, c := range cur {
				curWords += wordCount(c)
			}
			for len(cur) > 0 && curWords+wc > maxWords {
				curWords -= wordCount(cur[0])
				cur = cur[1:]
			}
		}
		cur = append(cur, s)
		curWords += wc
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}
	return chunks
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
