package pattern

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// matchVendor returns vendor patterns whose value is the transaction's
// signature or one of its shorter leading-token prefixes.
func (l *Learner) matchVendor(ctx context.Context, store Store, userID string, txn model.Transaction) ([]model.LearningPattern, error) {
	var matches []model.LearningPattern
	seen := make(map[string]bool)

	for n := l.cfg.VendorTokens; n >= 1; n-- {
		signature := NormalizeVendor(txn.Description, n)
		if signature == "" || seen[signature] {
			continue
		}
		seen[signature] = true

		p, err := store.FindPattern(ctx, userID, model.PatternVendor, signature)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up vendor pattern %q: %w", signature, err)
		}
		matches = append(matches, *p)
	}

	return matches, nil
}

// matchKeywords returns keyword patterns whose words appear as a phrase in the
// transaction description.
func matchKeywords(patterns []model.LearningPattern, description string) []model.LearningPattern {
	var matches []model.LearningPattern
	for _, p := range patterns {
		needle := NormalizeKeyword(p.Value)
		if needle != "" && containsPhrase(description, needle) {
			matches = append(matches, p)
		}
	}
	return matches
}

// matchAmount returns amount-range patterns containing the absolute amount.
// Malformed stored ranges are skipped.
func matchAmount(patterns []model.LearningPattern, amount decimal.Decimal) []model.LearningPattern {
	var matches []model.LearningPattern
	for _, p := range patterns {
		r, err := ParseAmountRange(p.Value)
		if err != nil {
			common.LogDebug("skipping malformed amount range pattern", common.Fields{
				"pattern_id": p.ID,
				"value":      p.Value,
			})
			continue
		}
		if r.Contains(amount) {
			matches = append(matches, p)
		}
	}
	return matches
}

// mostFrequent returns the category with the largest summed usage across all
// of the user's patterns. Ties go to the most recently used, then the lower id.
func mostFrequent(patterns []model.LearningPattern) (model.LearningPattern, bool) {
	type tally struct {
		last  model.LearningPattern
		usage int
	}
	byCategory := make(map[string]*tally)

	for _, p := range patterns {
		t, ok := byCategory[p.CategoryID]
		if !ok {
			t = &tally{last: p}
			byCategory[p.CategoryID] = t
		}
		t.usage += p.UsageCount
		if p.LastUsed.After(t.last.LastUsed) {
			t.last = p
		}
	}

	var best *tally
	for _, t := range byCategory {
		switch {
		case best == nil,
			t.usage > best.usage,
			t.usage == best.usage && t.last.LastUsed.After(best.last.LastUsed),
			t.usage == best.usage && t.last.LastUsed.Equal(best.last.LastUsed) && t.last.CategoryID < best.last.CategoryID:
			best = t
		}
	}
	if best == nil {
		return model.LearningPattern{}, false
	}

	summary := best.last
	summary.UsageCount = best.usage
	return summary, true
}
