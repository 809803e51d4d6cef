package textutil

import (
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

const (
	// WordOverlapWeight scales the word-set signal so it never outranks an
	// exact match on its own.
	WordOverlapWeight = 0.8
	// SubstringFloor is the minimum score when one name contains the other.
	SubstringFloor = 0.8
)

// Score returns the similarity of two normalized names in [0, 1].
// Identical names score 1; an empty name never matches anything else.
func Score(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	score := SequenceRatio(a, b)
	score = max(score, WordOverlap(a, b)*WordOverlapWeight)
	if strings.Contains(a, b) || strings.Contains(b, a) {
		score = max(score, SubstringFloor)
	}
	return min(max(score, 0), 1)
}

// SequenceRatio is 2*LCS/(len(a)+len(b)) over runes.
func SequenceRatio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(edlib.LCS(a, b)) / float64(total)
}

// WordOverlap is |words(a) ∩ words(b)| / max(|words(a)|, |words(b)|).
func WordOverlap(a, b string) float64 {
	wa, wb := Words(a), Words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(wa), len(wb)))
}
