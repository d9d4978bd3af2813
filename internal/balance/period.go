// Package balance computes trial balances over categorized transactions and
// explains why they fail to balance.
package balance

import (
	"fmt"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
)

// Period is an inclusive range of calendar days. A zero bound is open.
type Period struct {
	From time.Time
	To   time.Time
}

// NewPeriod creates a period. If from is after to they are swapped.
func NewPeriod(from, to time.Time) Period {
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		from, to = to, from
	}
	return Period{From: truncateDay(from), To: truncateDay(to)}
}

// ParsePeriod parses YYYY-MM-DD bounds; empty strings leave a bound open.
func ParsePeriod(from, to string) (Period, error) {
	var p Period
	var err error
	if from != "" {
		if p.From, err = time.Parse(time.DateOnly, from); err != nil {
			return Period{}, fmt.Errorf("%w: invalid from date %q", common.ErrValidation, from)
		}
	}
	if to != "" {
		if p.To, err = time.Parse(time.DateOnly, to); err != nil {
			return Period{}, fmt.Errorf("%w: invalid to date %q", common.ErrValidation, to)
		}
	}
	return NewPeriod(p.From, p.To), nil
}

// Contains reports whether the date falls in the period, boundaries included.
func (p Period) Contains(date time.Time) bool {
	day := truncateDay(date)
	if !p.From.IsZero() && day.Before(p.From) {
		return false
	}
	if !p.To.IsZero() && day.After(p.To) {
		return false
	}
	return true
}

// String renders the period for reports.
func (p Period) String() string {
	from, to := "…", "…"
	if !p.From.IsZero() {
		from = p.From.Format(time.DateOnly)
	}
	if !p.To.IsZero() {
		to = p.To.Format(time.DateOnly)
	}
	return from + " to " + to
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
