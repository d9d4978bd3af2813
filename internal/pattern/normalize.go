package pattern

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/shopspring/decimal"
)

// Statement boilerplate that never identifies a vendor.
var noiseTokens = map[string]bool{
	"card":        true,
	"contactless": true,
	"pos":         true,
	"purchase":    true,
	"payment":     true,
	"debit":       true,
	"visa":        true,
	"ref":         true,
	"dd":          true,
	"so":          true,
	"fpi":         true,
	"bgc":         true,
	"tfr":         true,
	"the":         true,
}

// Words lower-cases text, strips digits and punctuation and splits on
// whitespace.
func Words(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
	return strings.Fields(cleaned)
}

// NormalizeVendor reduces a description to its vendor signature: the leading
// significant words, at most maxTokens of them.
func NormalizeVendor(description string, maxTokens int) string {
	words := Words(description)

	significant := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 2 || noiseTokens[w] {
			continue
		}
		significant = append(significant, w)
	}
	if len(significant) == 0 {
		significant = words
	}

	if maxTokens > 0 && len(significant) > maxTokens {
		significant = significant[:maxTokens]
	}
	return strings.Join(significant, " ")
}

// NormalizeKeyword normalizes a keyword pattern value.
func NormalizeKeyword(keyword string) string {
	return strings.Join(Words(keyword), " ")
}

// AmountRange is an inclusive range of absolute amounts.
type AmountRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// ParseAmountRange parses "min:max". Either bound may use a minus sign; the
// range is taken over absolute values.
func ParseAmountRange(value string) (AmountRange, error) {
	lo, hi, ok := strings.Cut(value, ":")
	if !ok {
		return AmountRange{}, fmt.Errorf("%w: amount range %q must look like min:max", common.ErrValidation, value)
	}

	min, err := decimal.NewFromString(strings.TrimSpace(lo))
	if err != nil {
		return AmountRange{}, fmt.Errorf("%w: amount range minimum %q: %v", common.ErrValidation, lo, err)
	}
	max, err := decimal.NewFromString(strings.TrimSpace(hi))
	if err != nil {
		return AmountRange{}, fmt.Errorf("%w: amount range maximum %q: %v", common.ErrValidation, hi, err)
	}

	min, max = min.Abs(), max.Abs()
	if min.GreaterThan(max) {
		min, max = max, min
	}
	return AmountRange{Min: min, Max: max}, nil
}

// Contains reports whether the absolute amount falls inside the range.
func (r AmountRange) Contains(amount decimal.Decimal) bool {
	abs := amount.Abs()
	return abs.GreaterThanOrEqual(r.Min) && abs.LessThanOrEqual(r.Max)
}

// String renders the normalized pattern value.
func (r AmountRange) String() string {
	return r.Min.StringFixed(2) + ":" + r.Max.StringFixed(2)
}
