package pattern

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// Suggest returns ranked category suggestions for txn. Tiers are consulted in
// order and the first tier that produces anything wins: vendor signature,
// keyword phrase, amount range, then the user's most used category.
// A user with no patterns gets an empty list, not an error.
func (l *Learner) Suggest(ctx context.Context, store Store, userID string, txn model.Transaction) ([]Suggestion, error) {
	if err := validateUser(userID, txn); err != nil {
		return nil, err
	}

	vendor, err := l.matchVendor(ctx, store, userID, txn)
	if err != nil {
		return nil, err
	}
	if suggestions, err := l.rank(ctx, store, userID, txn, vendor); err != nil || len(suggestions) > 0 {
		return suggestions, err
	}

	keywords, err := store.ListPatterns(ctx, userID, model.PatternKeyword)
	if err != nil {
		return nil, fmt.Errorf("failed to list keyword patterns: %w", err)
	}
	if suggestions, err := l.rank(ctx, store, userID, txn, matchKeywords(keywords, txn.Description)); err != nil || len(suggestions) > 0 {
		return suggestions, err
	}

	ranges, err := store.ListPatterns(ctx, userID, model.PatternAmountRange)
	if err != nil {
		return nil, fmt.Errorf("failed to list amount patterns: %w", err)
	}
	if suggestions, err := l.rank(ctx, store, userID, txn, matchAmount(ranges, txn.Amount)); err != nil || len(suggestions) > 0 {
		return suggestions, err
	}

	return l.fallback(ctx, store, userID)
}

// EffectiveConfidence applies the usage factor to a stored confidence.
func (l *Learner) EffectiveConfidence(p model.LearningPattern) float64 {
	usage := math.Max(0, float64(p.UsageCount))
	effective := p.Confidence * (1 + math.Log(1+usage)/l.cfg.UsageDecayDivisor)
	return round2(math.Min(100, effective))
}

type ranked struct {
	suggestion Suggestion
	pattern    model.LearningPattern
}

// rank turns matched patterns into suggestions, one per category, best first.
func (l *Learner) rank(ctx context.Context, store Store, userID string, txn model.Transaction, matches []model.LearningPattern) ([]Suggestion, error) {
	if len(matches) == 0 {
		return nil, nil
	}

	candidates := make([]ranked, 0, len(matches))
	for _, p := range matches {
		category, err := store.GetCategory(ctx, userID, p.CategoryID)
		if errors.Is(err, common.ErrNotFound) {
			common.LogDebug("pattern references a missing category", common.Fields{
				"pattern_id":  p.ID,
				"category_id": p.CategoryID,
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load category %s: %w", p.CategoryID, err)
		}

		candidates = append(candidates, ranked{
			pattern: p,
			suggestion: Suggestion{
				Category:   *category,
				Confidence: l.EffectiveConfidence(p),
				Source:     p.Type,
				PatternID:  p.ID,
				Reason:     generateReason(txn, p, category),
			},
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.suggestion.Confidence != b.suggestion.Confidence {
			return a.suggestion.Confidence > b.suggestion.Confidence
		}
		if !a.pattern.LastUsed.Equal(b.pattern.LastUsed) {
			return a.pattern.LastUsed.After(b.pattern.LastUsed)
		}
		return a.suggestion.Category.ID < b.suggestion.Category.ID
	})

	suggestions := make([]Suggestion, 0, len(candidates))
	seen := make(map[string]bool)
	for _, c := range candidates {
		if seen[c.suggestion.Category.ID] {
			continue
		}
		seen[c.suggestion.Category.ID] = true
		suggestions = append(suggestions, c.suggestion)
	}
	return suggestions, nil
}

func (l *Learner) fallback(ctx context.Context, store Store, userID string) ([]Suggestion, error) {
	all, err := store.ListPatterns(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}

	top, ok := mostFrequent(all)
	if !ok {
		return []Suggestion{}, nil
	}

	category, err := store.GetCategory(ctx, userID, top.CategoryID)
	if errors.Is(err, common.ErrNotFound) {
		return []Suggestion{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load category %s: %w", top.CategoryID, err)
	}

	return []Suggestion{{
		Category:   *category,
		Confidence: l.cfg.FallbackConfidence,
		Source:     model.PatternFrequency,
		Reason:     fmt.Sprintf("%s is your most used category (%d assignments)", category.Name, top.UsageCount),
	}}, nil
}

// generateReason creates a human-readable explanation for a suggestion.
func generateReason(txn model.Transaction, p model.LearningPattern, category *model.Category) string {
	switch p.Type {
	case model.PatternVendor:
		return fmt.Sprintf("Transactions from %q have been categorized as %s %d time(s)", p.Value, category.Name, p.UsageCount)
	case model.PatternKeyword:
		return fmt.Sprintf("Description contains %q, usually categorized as %s", p.Value, category.Name)
	case model.PatternAmountRange:
		return fmt.Sprintf("Amount %s falls in %s, usually categorized as %s", txn.Amount.Abs().StringFixed(2), p.Value, category.Name)
	}
	return fmt.Sprintf("Usually categorized as %s", category.Name)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
