package matching

import (
	"strings"
	"unicode"
)

// Tokens lower-cases a description, strips punctuation and returns the set of
// remaining words.
func Tokens(description string) map[string]struct{} {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, description)

	fields := strings.Fields(cleaned)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// DescriptionSimilarity is the Jaccard ratio of the two token sets, in [0,1].
// Two empty descriptions carry no evidence and score 0.
func DescriptionSimilarity(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}
