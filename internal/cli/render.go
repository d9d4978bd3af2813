package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/Veraticus/the-books-must-balance/internal/balance"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/pattern"
)

// RenderTransactions lists transactions with their match and category state.
// Ids carry the version they were read at so they can be pasted back into a
// mutating command.
func RenderTransactions(w io.Writer, txns []model.Transaction) error {
	t := NewTable(w, "ID@VERSION", "DATE", "AMOUNT", "DESCRIPTION", "CATEGORY", "STATUS", "PARTNER")
	for _, txn := range txns {
		category := SubtleStyle.Render("-")
		if txn.IsCategorized() {
			category = txn.Category.Name
		}
		t.Row(
			txn.Ref().String(),
			txn.Date.Format("2006-01-02"),
			FormatAmount(txn.Amount),
			truncate(txn.Description, 40),
			category,
			FormatStatus(txn.MatchStatus()),
			txn.PartnerID(),
		)
	}
	return t.Flush()
}

// RenderCandidates lists match candidates best first.
func RenderCandidates(w io.Writer, candidates []model.MatchCandidate) error {
	if len(candidates) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No match candidates"))
		return err
	}
	t := NewTable(w, "PAID OUT", "PAID IN", "AMOUNT", "SCORE", "DAYS", "SIMILARITY")
	for _, c := range candidates {
		t.Row(
			c.PaidOutID,
			c.PaidInID,
			c.Amount.StringFixed(2),
			FormatScore(c.Score),
			strconv.Itoa(c.DateDiffDays),
			fmt.Sprintf("%.2f", c.DescriptionSimilarity),
		)
	}
	return t.Flush()
}

// RenderSuggestions lists category suggestions in rank order.
func RenderSuggestions(w io.Writer, suggestions []pattern.Suggestion) error {
	if len(suggestions) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No category suggestions yet"))
		return err
	}
	t := NewTable(w, "CATEGORY", "COMPONENT", "CONFIDENCE", "SOURCE", "REASON")
	for _, s := range suggestions {
		t.Row(
			s.Category.Name,
			string(s.Category.Component),
			FormatScore(s.Confidence),
			string(s.Source),
			s.Reason,
		)
	}
	return t.Flush()
}

// RenderPatterns lists learned patterns with their category names.
func RenderPatterns(w io.Writer, patterns []model.LearningPattern, categories map[string]model.Category) error {
	if len(patterns) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No patterns learned yet"))
		return err
	}
	t := NewTable(w, "TYPE", "VALUE", "CATEGORY", "CONFIDENCE", "USES", "LAST USED")
	for _, p := range patterns {
		name := p.CategoryID
		if cat, ok := categories[p.CategoryID]; ok {
			name = cat.Name
		}
		t.Row(
			string(p.Type),
			p.Value,
			name,
			FormatScore(p.Confidence),
			strconv.Itoa(p.UsageCount),
			p.LastUsed.Format("2006-01-02"),
		)
	}
	return t.Flush()
}

// RenderCategories lists categories grouped by component.
func RenderCategories(w io.Writer, categories []model.Category) error {
	t := NewTable(w, "NAME", "COMPONENT", "SUBCATEGORY", "ID")
	for _, c := range categories {
		t.Row(c.Name, string(c.Component), c.Subcategory, SubtleStyle.Render(c.ID))
	}
	return t.Flush()
}

// RenderBalance prints the component totals, the identity check and any
// diagnostics.
func RenderBalance(w io.Writer, report *engine.BalanceReport) error {
	var b strings.Builder

	b.WriteString(FormatTitle("Trial balance " + report.Period.String()))
	b.WriteString("\n")

	t := NewTable(&b, "COMPONENT", "TOTAL")
	for _, c := range model.Components {
		t.Row(string(c), FormatAmount(report.Totals.Get(c)))
	}
	if err := t.Flush(); err != nil {
		return err
	}

	identity := fmt.Sprintf("Asset + Expense:              %s\nLiability + Equity + Income:  %s\nImbalance:                    %s (tolerance %s, %.4f%%)",
		FormatAmount(report.LeftSide),
		FormatAmount(report.RightSide),
		FormatAmount(report.Imbalance), report.Epsilon.StringFixed(4), report.DiscrepancyPercentage)
	b.WriteString("\n")
	b.WriteString(RenderBox(ScaleIcon+" Accounting identity", identity))
	fmt.Fprintf(&b, "\nTransactions: %d, uncategorized: %d\n\n", report.Totals.Count, report.Totals.UncategorizedCount)

	if report.Balanced {
		b.WriteString(FormatSuccess("Books balance"))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString(FormatError("Books do not balance"))
	b.WriteString("\n\n")
	if len(report.Diagnostics) > 0 {
		dt := NewTable(&b, "#", "CAUSE", "ACCOUNT", "MAGNITUDE", "AFFECTED")
		for i, d := range report.Diagnostics {
			dt.Row(
				strconv.Itoa(i+1),
				describeDiagnostic(d.Code),
				d.Account,
				d.Magnitude.StringFixed(2),
				strconv.Itoa(d.AffectedCount),
			)
		}
		if err := dt.Flush(); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderBulkMatchReport summarizes a bulk confirm or auto-propose run.
func RenderBulkMatchReport(w io.Writer, report *engine.BulkMatchReport, confirmed bool) error {
	verb := "Proposed"
	if confirmed {
		verb = "Confirmed"
	}

	var b strings.Builder
	b.WriteString(FormatSuccess(fmt.Sprintf("%s %d pairs", verb, len(report.Committed))))
	b.WriteString("\n")
	if report.Learned > 0 {
		b.WriteString(FormatInfo(fmt.Sprintf("Reinforced %d patterns from confirmed pairs", report.Learned)))
		b.WriteString("\n")
	}
	if n := len(report.Voided); n > 0 {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("%d candidates lost a leg to a better pair", n)))
		b.WriteString("\n")
	}
	if report.BelowThreshold > 0 {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("%d candidates scored below the threshold", report.BelowThreshold)))
		b.WriteString("\n")
	}
	if len(report.Conflicts) > 0 {
		b.WriteString(FormatWarning(fmt.Sprintf("%d pairs changed underneath the run and were skipped", len(report.Conflicts))))
		b.WriteString("\n")
		t := NewTable(&b, "PAID OUT", "PAID IN", "REASON")
		for _, c := range report.Conflicts {
			t.Row(c.Candidate.PaidOutID, c.Candidate.PaidInID, c.Err.Error())
		}
		if err := t.Flush(); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderBulkAssignReport summarizes a vendor-wide category assignment.
func RenderBulkAssignReport(w io.Writer, report *engine.BulkAssignReport) error {
	var b strings.Builder
	b.WriteString(FormatSuccess(fmt.Sprintf("Assigned %d transactions to %s", len(report.Assigned), report.Category.Name)))
	b.WriteString("\n")
	if report.Unchanged > 0 {
		b.WriteString(SubtleStyle.Render(fmt.Sprintf("%d already in %s", report.Unchanged, report.Category.Name)))
		b.WriteString("\n")
	}
	if report.Learned > 0 {
		b.WriteString(FormatInfo(fmt.Sprintf("Learned %d vendor signatures", report.Learned)))
		b.WriteString("\n")
	}
	if len(report.Conflicts) > 0 {
		ids := make([]string, 0, len(report.Conflicts))
		for id := range report.Conflicts {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		b.WriteString(FormatWarning(fmt.Sprintf("%d transactions changed underneath the run and were skipped", len(ids))))
		b.WriteString("\n")
		t := NewTable(&b, "TRANSACTION", "REASON")
		for _, id := range ids {
			t.Row(id, report.Conflicts[id].Error())
		}
		if err := t.Flush(); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func describeDiagnostic(code balance.DiagnosticCode) string {
	switch code {
	case balance.CodeUnmatchedVolume:
		return "transfers not confirmed as matched"
	case balance.CodeUncategorized:
		return "transactions without a category"
	case balance.CodeTimingDifference:
		return "timing difference at period edge"
	case balance.CodeReconciliationDelta:
		return "statement balance does not reconcile"
	case balance.CodeLeftSideHigh:
		return "asset + expense side is high"
	case balance.CodeRightSideHigh:
		return "liability + equity + income side is high"
	default:
		return string(code)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
