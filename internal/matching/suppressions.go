package matching

import (
	"sort"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// Suppression is a rejected pairing together with the data it was rejected on.
type Suppression = model.MatchSuppression

type pairKey struct {
	out string
	in  string
}

// Suppressions is the set of rejected pairs for one candidate-generation
// context. A nil *Suppressions suppresses nothing.
type Suppressions struct {
	entries map[pairKey]Suppression
}

// NewSuppressions builds a set from previously stored entries.
func NewSuppressions(entries ...Suppression) *Suppressions {
	s := &Suppressions{entries: make(map[pairKey]Suppression, len(entries))}
	for _, e := range entries {
		s.entries[pairKey{out: e.PaidOutID, in: e.PaidInID}] = e
	}
	return s
}

// Add records out/in as rejected with their current fingerprints.
func (s *Suppressions) Add(out, in model.Transaction, at time.Time) Suppression {
	entry := Suppression{
		UserID:             out.UserID,
		PaidOutID:          out.ID,
		PaidInID:           in.ID,
		PaidOutFingerprint: out.Fingerprint(),
		PaidInFingerprint:  in.Fingerprint(),
		CreatedAt:          at,
	}
	if s.entries == nil {
		s.entries = make(map[pairKey]Suppression)
	}
	s.entries[pairKey{out: out.ID, in: in.ID}] = entry
	return entry
}

// Suppresses reports whether out/in was rejected and neither leg's date,
// amount or description has changed since.
func (s *Suppressions) Suppresses(out, in model.Transaction) bool {
	if s == nil {
		return false
	}
	entry, ok := s.entries[pairKey{out: out.ID, in: in.ID}]
	if !ok {
		return false
	}
	return entry.PaidOutFingerprint == out.Fingerprint() &&
		entry.PaidInFingerprint == in.Fingerprint()
}

// Clear drops every suppression.
func (s *Suppressions) Clear() {
	s.entries = make(map[pairKey]Suppression)
}

// Len returns the number of recorded suppressions.
func (s *Suppressions) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Entries returns the suppressions sorted by pair.
func (s *Suppressions) Entries() []Suppression {
	if s == nil {
		return nil
	}
	out := make([]Suppression, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaidOutID != out[j].PaidOutID {
			return out[i].PaidOutID < out[j].PaidOutID
		}
		return out[i].PaidInID < out[j].PaidInID
	})
	return out
}
