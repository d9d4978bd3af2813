package pattern

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVendor(t *testing.T) {
	tests := []struct {
		name   string
		desc   string
		want   string
		tokens int
	}{
		{name: "simple", desc: "Tesco", tokens: 2, want: "tesco"},
		{name: "digits and case", desc: "TESCO STORES 2231", tokens: 2, want: "tesco stores"},
		{name: "noise words", desc: "CARD PAYMENT TO Pret A Manger", tokens: 2, want: "to pret"},
		{name: "punctuation", desc: "Amazon.co.uk*MK12", tokens: 1, want: "amazon"},
		{name: "only noise keeps raw words", desc: "Card Payment", tokens: 2, want: "card payment"},
		{name: "empty", desc: " 123 -- ", tokens: 2, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeVendor(tt.desc, tt.tokens))
		})
	}
}

func TestParseAmountRange(t *testing.T) {
	r, err := ParseAmountRange("20:5")
	require.NoError(t, err)
	assert.Equal(t, "5.00:20.00", r.String())
	assert.True(t, r.Contains(decimal.RequireFromString("-12.34")))
	assert.True(t, r.Contains(decimal.RequireFromString("5")))
	assert.False(t, r.Contains(decimal.RequireFromString("20.01")))

	_, err = ParseAmountRange("5")
	assert.Error(t, err)
}
