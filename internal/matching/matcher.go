package matching

import (
	"math"
	"sort"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// Matcher scores and applies PaidOut/PaidIn pairings.
type Matcher struct {
	now func() time.Time
	cfg Config
}

// New creates a matcher with the given policy.
func New(cfg Config) *Matcher {
	return &Matcher{
		cfg: cfg,
		now: time.Now,
	}
}

// WithClock overrides the clock used for UpdatedAt stamps.
func (m *Matcher) WithClock(now func() time.Time) *Matcher {
	m.now = now
	return m
}

// Config returns the matcher's policy.
func (m *Matcher) Config() Config {
	return m.cfg
}

// FindCandidates returns every eligible pairing between unmatched PaidOut and
// unmatched PaidIn transactions, best first. Pairs rejected while both legs
// kept the same data are left out.
func (m *Matcher) FindCandidates(txns []model.Transaction, suppressed *Suppressions) []model.MatchCandidate {
	var outs, ins []model.Transaction
	for _, txn := range txns {
		if txn.MatchStatus() != model.MatchStatusUnmatched {
			continue
		}
		switch txn.Type {
		case model.PaidOut:
			outs = append(outs, txn)
		case model.PaidIn:
			ins = append(ins, txn)
		}
	}

	var candidates []model.MatchCandidate
	for _, out := range outs {
		for _, in := range ins {
			candidate, ok := m.Score(out, in)
			if !ok || suppressed.Suppresses(out, in) {
				continue
			}
			candidates = append(candidates, candidate)
		}
	}

	SortCandidates(candidates)
	return candidates
}

// SuggestFor lists the best partners for one transaction regardless of its
// direction, capped at limit (the configured suggestion limit when limit <= 0).
func (m *Matcher) SuggestFor(target model.Transaction, all []model.Transaction, suppressed *Suppressions, limit int) []model.MatchCandidate {
	if limit <= 0 {
		limit = m.cfg.SuggestionLimit
	}

	var candidates []model.MatchCandidate
	for _, other := range all {
		if other.ID == target.ID || other.Type != target.Type.Opposite() {
			continue
		}
		if other.MatchStatus() != model.MatchStatusUnmatched {
			continue
		}

		out, in := target, other
		if target.Type == model.PaidIn {
			out, in = other, target
		}

		candidate, ok := m.Score(out, in)
		if !ok || suppressed.Suppresses(out, in) {
			continue
		}
		candidates = append(candidates, candidate)
	}

	SortCandidates(candidates)
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// Score evaluates out and in as a pair. The boolean is false when the pair is
// not eligible: wrong directions, different owners, different absolute
// amounts, or dates further apart than the tolerance.
func (m *Matcher) Score(out, in model.Transaction) (model.MatchCandidate, bool) {
	if out.Type != model.PaidOut || in.Type != model.PaidIn {
		return model.MatchCandidate{}, false
	}
	if out.UserID != in.UserID {
		return model.MatchCandidate{}, false
	}
	if !out.Amount.Abs().Equal(in.Amount.Abs()) {
		return model.MatchCandidate{}, false
	}

	diff := DateDiffDays(out.Date, in.Date)
	if diff > m.cfg.ToleranceDays {
		return model.MatchCandidate{}, false
	}

	score, sim := m.pairScore(out, in, diff)
	return model.MatchCandidate{
		PaidOutID:             out.ID,
		PaidInID:              in.ID,
		Amount:                out.Amount.Abs(),
		Score:                 score,
		DateDiffDays:          diff,
		DescriptionSimilarity: sim,
	}, true
}

// pairScore applies the weighted formula without any eligibility checks, so
// it can also price pairs the user confirms by hand.
func (m *Matcher) pairScore(a, b model.Transaction, diff int) (float64, float64) {
	score := 0.0
	if a.Amount.Abs().Equal(b.Amount.Abs()) {
		score += m.cfg.AmountWeight
	}

	// Denominator is tolerance+1 so a zero tolerance stays defined and the
	// furthest allowed day still earns some date credit.
	dateFactor := 1 - float64(diff)/float64(m.cfg.ToleranceDays+1)
	if dateFactor > 0 {
		score += m.cfg.DateWeight * dateFactor
	}

	sim := DescriptionSimilarity(a.Description, b.Description)
	score += m.cfg.DescriptionWeight * sim

	return clampScore(score), sim
}

func clampScore(score float64) float64 {
	score = math.Round(score*100) / 100
	return math.Max(0, math.Min(100, score))
}

// DateDiffDays is the absolute number of calendar days between two dates.
func DateDiffDays(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// SortCandidates orders candidates by score, then closer dates, then more
// similar descriptions, then identifiers so the order is deterministic.
func SortCandidates(candidates []model.MatchCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidateLess(candidates[i], candidates[j])
	})
}

func candidateLess(a, b model.MatchCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.DateDiffDays != b.DateDiffDays {
		return a.DateDiffDays < b.DateDiffDays
	}
	if a.DescriptionSimilarity != b.DescriptionSimilarity {
		return a.DescriptionSimilarity > b.DescriptionSimilarity
	}
	if a.PaidOutID != b.PaidOutID {
		return a.PaidOutID < b.PaidOutID
	}
	return a.PaidInID < b.PaidInID
}
