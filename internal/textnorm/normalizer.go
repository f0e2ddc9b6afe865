// Package textnorm cleans raw extracted text before chunking and search.
//
// All functions are total: they never fail and return "" for blank input.
// Clean is idempotent: Clean(Clean(s)) == Clean(s).
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

const (
	leadingPunct  = "–=+-,.'/\\:;(•"
	trailingPunct = ",/':.;\\="
)

var (
	legacyReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"\u00a0", " ",
		"\u202f", " ",
		"\u2007", " ",
		"®", "",
		"\b", "",
		"ð", "đ",
	)
	markupRe       = regexp.MustCompile(`<[a-zA-Z!/][^>]*>`)
	specialCharsRe = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s\p{Z}%+.,]`)
	multiSpaceRe   = regexp.MustCompile(`[\s\p{Z}]+`)
	multiPlusRe    = regexp.MustCompile(`\++`)
)

// Clean normalizes document body text and guarantees a trailing full stop.
func Clean(raw string) string {
	s := cleanDocument(raw)
	if s == "" {
		return ""
	}
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}

// CleanShort normalizes short descriptions: same as Clean without the
// trailing full stop.
func CleanShort(raw string) string {
	return cleanDocument(raw)
}

// SearchTerm normalizes a user query: no markup or entity handling, no
// trailing full stop, lowercased.
func SearchTerm(raw string) string {
	s := canonicalize(raw)
	s = StripEmoji(s)
	s = stripSpecialChars(s)
	s = trimEnds(s)
	s = multiPlusRe.ReplaceAllString(s, "+")
	s = strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
	return strings.ToLower(s)
}

func cleanDocument(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	s := canonicalize(raw)
	if HasMarkup(s) {
		s = StripMarkup(s)
	}
	s = canonicalize(decodeEntities(s))
	s = StripEmoji(s)
	s = stripSpecialChars(s)
	s = multiPlusRe.ReplaceAllString(s, "+")
	return trimEnds(s)
}

// Prepare canonicalizes raw text, strips markup and decodes entities but
// keeps line breaks and punctuation, so chunk boundaries (separators,
// sentence terminators, paragraphs) survive. Chunks cut from it are
// finished with Clean.
func Prepare(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	s := canonicalize(raw)
	if HasMarkup(s) {
		s = StripMarkup(s)
	}
	return canonicalize(html.UnescapeString(s))
}

// canonicalize applies NFC and removes stray control and legacy characters.
func canonicalize(s string) string {
	s = legacyReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(norm.NFC.String(s))
}

func decodeEntities(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func stripSpecialChars(s string) string {
	s = specialCharsRe.ReplaceAllString(s, " ")
	return multiSpaceRe.ReplaceAllString(s, " ")
}

func trimEnds(s string) string {
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(leadingPunct, r)
	})
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(trailingPunct, r)
	})
}

// StripEmoji removes emoji and pictographic symbols.
func StripEmoji(s string) string {
	return strings.Map(func(r rune) rune {
		if isEmoji(r) {
			return -1
		}
		return r
	}, s)
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x2600 && r <= 0x27BF,
		r >= 0x1F300 && r <= 0x1F64F,
		r >= 0x1F680 && r <= 0x1F6FF,
		r >= 0x1F900 && r <= 0x1F9FF,
		r >= 0x1FA70 && r <= 0x1FAFF,
		r == 0xFE0F:
		return true
	}
	return false
}
