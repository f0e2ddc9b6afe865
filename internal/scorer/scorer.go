// Package scorer rates the linguistic quality of Vietnamese text chunks.
package scorer

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"legalrag/internal/domain"
)

const vietnameseLetters = "àáảãạăằắẳẵặâầấẩẫậđèéẻẽẹêềếểễệìíỉĩịòóỏõọôồốổỗộơờớởỡợùúủũụưừứửữựỳýỷỹỵ"

var (
	wordRe        = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)
	terminatorRe  = regexp.MustCompile(`[.!?]+`)
	digitsRe      = regexp.MustCompile(`\p{Nd}+`)
	specialRe     = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s.,!?]`)
	completeEndRe = regexp.MustCompile(`[.!?]['"]?\s*$`)
)

// Weights of the sub-scores in the final score. Capitalization is reserved
// and carries no weight.
var Weights = struct {
	Length, Punctuation, VietnameseCharRatio, NumericRatio,
	SpecialCharRatio, SentenceCompleteness, SourceQuality float64
}{
	Length:               0.20,
	Punctuation:          0.10,
	VietnameseCharRatio:  0.15,
	NumericRatio:         0.10,
	SpecialCharRatio:     0.10,
	SentenceCompleteness: 0.10,
	SourceQuality:        0.25,
}

// Trusted source tags (official FAQ and news sources) and the live chat tag.
var (
	trustedSources = map[string]struct{}{"vac": {}, "lc": {}, "ttdt": {}}
	chatSources    = map[string]struct{}{"chat": {}}
)

// Score returns the final quality score of text in [0,1].
func Score(text, sourceTag string) float64 {
	return Breakdown(text, sourceTag).Final
}

// Breakdown computes every sub-score of text and the weighted final score.
// Blank text yields a zero vector.
func Breakdown(text, sourceTag string) domain.ScoreVector {
	var v domain.ScoreVector
	if strings.TrimSpace(text) == "" {
		return v
	}

	words := len(wordRe.FindAllString(text, -1))
	chars := float64(utf8.RuneCountInString(text))

	v.Length = lengthScore(words)
	if sentences := len(terminatorRe.FindAllString(text, -1)); sentences > 0 {
		avg := float64(words) / float64(sentences)
		if avg >= 10 && avg <= 25 {
			v.Punctuation = 1
		} else {
			v.Punctuation = 1 - math.Min(1, math.Abs(avg-17.5)/17.5)
		}
	}

	v.VietnameseCharRatio = math.Min(1, float64(countVietnamese(text))/chars*10)

	digits := 0
	for _, d := range digitsRe.FindAllString(text, -1) {
		digits += utf8.RuneCountInString(d)
	}
	v.NumericRatio = 1 - math.Min(1, float64(digits)/chars*5)

	special := len(specialRe.FindAllString(text, -1))
	v.SpecialCharRatio = 1 - math.Min(1, float64(special)/chars*10)

	v.SentenceCompleteness = 0.3
	if completeEndRe.MatchString(text) {
		v.SentenceCompleteness = 1
	}

	v.SourceQuality = sourceQuality(sourceTag)

	final := v.Length*Weights.Length +
		v.Punctuation*Weights.Punctuation +
		v.VietnameseCharRatio*Weights.VietnameseCharRatio +
		v.NumericRatio*Weights.NumericRatio +
		v.SpecialCharRatio*Weights.SpecialCharRatio +
		v.SentenceCompleteness*Weights.SentenceCompleteness +
		v.SourceQuality*Weights.SourceQuality
	v.Final = math.Max(0, math.Min(1, final))
	return v
}

// lengthScore favours chunks of 50 to 200 words.
func lengthScore(words int) float64 {
	const lo, hi = 50, 200
	switch {
	case words <= lo:
		return float64(words) / lo
	case words >= hi:
		return math.Max(0, 1-float64(words-hi)/(hi*2))
	default:
		return 1
	}
}

func countVietnamese(text string) int {
	n := 0
	for _, r := range strings.ToLower(text) {
		if strings.ContainsRune(vietnameseLetters, r) {
			n++
		}
	}
	return n
}

func sourceQuality(tag string) float64 {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if _, ok := trustedSources[tag]; ok {
		return 1
	}
	if _, ok := chatSources[tag]; ok {
		return 0.3
	}
	return 0.5
}
