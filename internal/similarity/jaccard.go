package similarity

import (
	"strings"
	"unicode"
)

// JaccardSimilarity computes word-set intersection-over-union between two
// text spans. Texts are lowercased, punctuation is treated as whitespace
// and duplicate words count once. Stop-words are deliberately retained:
// this scorer exists to catch lexical near-duplicates and to reject
// paraphrases that embeddings alone would over-match, so no stemming or
// synonym handling is applied.
//
// Two empty texts are vacuously identical (1.0); exactly one empty text
// scores 0.0.
func JaccardSimilarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)

	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1.0
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0.0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection

	return float64(intersection) / float64(union)
}

// MeetsJaccardThreshold reports whether the lexical similarity of the two
// texts is at least threshold. A threshold of zero or below disables the
// check entirely and always passes.
func MeetsJaccardThreshold(a, b string, threshold float64) bool {
	if threshold <= 0 {
		return true
	}
	return JaccardSimilarity(a, b) >= threshold
}

func wordSet(text string) map[string]struct{} {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	set := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		set[w] = struct{}{}
	}
	return set
}
