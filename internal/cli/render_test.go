package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/balance"
	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_AlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, "A", "B")
	table.Row("short", "x")
	table.Row("much longer cell", "y", "dropped")
	require.NoError(t, table.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Index(lines[1], "x"), strings.Index(lines[2], "y"))
	assert.NotContains(t, buf.String(), "dropped")
}

func TestEscapeStyled(t *testing.T) {
	styled := "\x1b[31mred\x1b[0m"
	escaped := escapeStyled(styled)
	assert.Equal(t, "\xff\x1b[31m\xffred\xff\x1b[0m\xff", escaped)
	assert.Equal(t, "plain", escapeStyled("plain"))
}

func TestRenderCandidates(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderCandidates(&buf, nil))
	assert.Contains(t, buf.String(), "No match candidates")

	buf.Reset()
	require.NoError(t, RenderCandidates(&buf, []model.MatchCandidate{{
		PaidOutID:             "o1",
		PaidInID:              "i1",
		Amount:                decimal.RequireFromString("100"),
		Score:                 86.67,
		DateDiffDays:          1,
		DescriptionSimilarity: 0.5,
	}}))
	out := buf.String()
	assert.Contains(t, out, "o1")
	assert.Contains(t, out, "100.00")
	assert.Contains(t, out, "86.7")
}

func TestRenderTransactions_ShowsVersionToken(t *testing.T) {
	partner := "i1"
	var buf bytes.Buffer
	require.NoError(t, RenderTransactions(&buf, []model.Transaction{{
		ID:                   "o1",
		Date:                 time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC),
		Amount:               decimal.RequireFromString("-42.5"),
		Description:          "TESCO STORES 2231",
		MatchedTransactionID: &partner,
		Version:              4,
	}}))

	out := buf.String()
	assert.Contains(t, out, "ID@VERSION")
	assert.Contains(t, out, "o1@4")
	assert.Contains(t, out, "i1")
}

func TestRenderBalance(t *testing.T) {
	totals := balance.NewTotals(map[model.FinancialComponent]decimal.Decimal{
		model.ComponentAsset:  decimal.RequireFromString("100"),
		model.ComponentIncome: decimal.RequireFromString("90"),
	})
	result, err := balance.Validate(totals, balance.DefaultConfig())
	require.NoError(t, err)

	period := balance.NewPeriod(
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
	)
	report := &engine.BalanceReport{
		Result: result,
		Period: period,
		Diagnostics: []balance.Diagnostic{
			{Code: balance.CodeUncategorized, Magnitude: decimal.RequireFromString("10"), AffectedCount: 2},
			{Code: balance.CodeLeftSideHigh, Magnitude: decimal.RequireFromString("10")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderBalance(&buf, report))
	out := buf.String()
	assert.Contains(t, out, "Books do not balance")
	assert.Contains(t, out, "transactions without a category")
	assert.Contains(t, out, "asset + expense side is high")
	assert.Contains(t, out, "10.00")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestRenderBulkAssignReport_ListsConflictsInOrder(t *testing.T) {
	report := &engine.BulkAssignReport{
		Category:  model.Category{Name: "Subscriptions"},
		Assigned:  make([]model.CategoryAssignment, 3),
		Unchanged: 1,
		Learned:   1,
		Conflicts: map[string]error{
			"t9": common.ErrStaleState,
			"t2": common.ErrNotFound,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderBulkAssignReport(&buf, report))
	out := buf.String()
	assert.Contains(t, out, "Assigned 3 transactions to Subscriptions")
	assert.Contains(t, out, "1 already in Subscriptions")
	assert.Less(t, strings.Index(out, "t2"), strings.Index(out, "t9"))
}
