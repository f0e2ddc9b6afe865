package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var (
	skippedTags = map[string]bool{
		"script": true, "style": true, "noscript": true, "head": true, "svg": true, "template": true,
	}
	blockTags = map[string]bool{
		"p": true, "div": true, "br": true, "hr": true, "li": true, "ul": true, "ol": true,
		"tr": true, "td": true, "th": true, "table": true, "blockquote": true, "pre": true,
		"section": true, "article": true, "header": true, "footer": true, "title": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	}
)

// HasMarkup reports whether s looks like it contains HTML tags.
func HasMarkup(s string) bool {
	return markupRe.MatchString(s)
}

// StripMarkup extracts visible text with a line break at every block
// boundary, then joins lines that rendering split mid-sentence: a break
// followed by a lowercase letter, digit, punctuation or space is dropped.
func StripMarkup(s string) string {
	text := strings.ReplaceAll(visibleText(s), "\u00a0", " ")
	return joinBrokenLines(text)
}

func visibleText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skippedTags[tag] && tt == html.StartTagToken {
				skip++
			}
			if blockTags[tag] && skip == 0 {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skippedTags[tag] && skip > 0 {
				skip--
			}
			if blockTags[tag] && skip == 0 {
				b.WriteByte('\n')
			}
		}
	}
}

func joinBrokenLines(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		if r == '\n' && i+1 < len(runes) && continuesLine(runes[i+1]) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func continuesLine(r rune) bool {
	if r == ' ' || unicode.IsLower(r) || unicode.IsDigit(r) {
		return true
	}
	return r < unicode.MaxASCII && unicode.IsPunct(r) || strings.ContainsRune("$+<=>^`|~", r)
}
