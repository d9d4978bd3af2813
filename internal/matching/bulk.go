package matching

import (
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// BulkResult describes what a greedy bulk pass did.
type BulkResult struct {
	Applied        []model.MatchMutation
	Voided         []model.MatchCandidate // A leg was consumed by a higher-ranked pair
	Conflicts      []BulkConflict
	BelowThreshold int
}

// BulkConflict is a candidate that could not be applied against current state.
type BulkConflict struct {
	Err       error
	Candidate model.MatchCandidate
}

// BulkConfirm confirms candidates scoring at or above threshold, best first,
// skipping any candidate whose leg was already taken by a better one in the
// same pass. This is a greedy approximation of maximum-weight bipartite
// matching; it never assigns one transaction twice.
func (m *Matcher) BulkConfirm(idx *Index, candidates []model.MatchCandidate, threshold float64) BulkResult {
	return m.greedy(idx, candidates, threshold, m.Confirm)
}

// AutoPropose runs the same greedy pass but leaves the pairs in PendingReview
// for a person to confirm.
func (m *Matcher) AutoPropose(idx *Index, candidates []model.MatchCandidate, threshold float64) BulkResult {
	return m.greedy(idx, candidates, threshold, m.Propose)
}

func (m *Matcher) greedy(
	idx *Index,
	candidates []model.MatchCandidate,
	threshold float64,
	apply func(*Index, string, string) (*model.MatchMutation, error),
) BulkResult {
	ranked := make([]model.MatchCandidate, len(candidates))
	copy(ranked, candidates)
	SortCandidates(ranked)

	var result BulkResult
	consumed := make(map[string]bool)

	for _, candidate := range ranked {
		if candidate.Score < threshold {
			result.BelowThreshold++
			continue
		}
		if consumed[candidate.PaidOutID] || consumed[candidate.PaidInID] {
			result.Voided = append(result.Voided, candidate)
			continue
		}

		mutation, err := apply(idx, candidate.PaidOutID, candidate.PaidInID)
		if err != nil {
			// Conflicts are per pair; the rest of the pass still runs.
			result.Conflicts = append(result.Conflicts, BulkConflict{Candidate: candidate, Err: err})
			continue
		}

		consumed[candidate.PaidOutID] = true
		consumed[candidate.PaidInID] = true
		if !mutation.NoOp {
			result.Applied = append(result.Applied, *mutation)
		}
	}

	return result
}
