package matching

import (
	"fmt"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
)

// Index is a working copy of one user's transactions keyed by id. It is the
// only place the mutual matched_transaction_id link is written, so both sides
// of a pair always change together.
type Index struct {
	byID  map[string]*model.Transaction
	order []string
}

// NewIndex copies txns into a new index. Later edits to txns do not affect it.
func NewIndex(txns []model.Transaction) *Index {
	idx := &Index{
		byID:  make(map[string]*model.Transaction, len(txns)),
		order: make([]string, 0, len(txns)),
	}
	for _, txn := range txns {
		clone := txn.Clone()
		if _, dup := idx.byID[clone.ID]; !dup {
			idx.order = append(idx.order, clone.ID)
		}
		idx.byID[clone.ID] = &clone
	}
	return idx
}

// Get returns a copy of the transaction with the given id.
func (i *Index) Get(id string) (model.Transaction, bool) {
	txn, ok := i.byID[id]
	if !ok {
		return model.Transaction{}, false
	}
	return txn.Clone(), true
}

// Len returns the number of transactions held.
func (i *Index) Len() int {
	return len(i.order)
}

// Transactions returns copies of all transactions in insertion order.
func (i *Index) Transactions() []model.Transaction {
	out := make([]model.Transaction, 0, len(i.order))
	for _, id := range i.order {
		out = append(out, i.byID[id].Clone())
	}
	return out
}

// Confirm links a and b as a confirmed pair. It fails with ErrInvalidPair for
// same-id or same-direction pairs and with ErrConflict when either side is
// already linked to someone else. Confirming an already confirmed pair is a
// no-op.
func (m *Matcher) Confirm(idx *Index, aID, bID string) (*model.MatchMutation, error) {
	return m.link(idx, aID, bID, true)
}

// Propose links a and b without confirming them, leaving both in
// PendingReview. A later Confirm of the same pair upgrades the link.
func (m *Matcher) Propose(idx *Index, aID, bID string) (*model.MatchMutation, error) {
	return m.link(idx, aID, bID, false)
}

func (m *Matcher) link(idx *Index, aID, bID string, confirm bool) (*model.MatchMutation, error) {
	a, b, err := idx.pair(aID, bID)
	if err != nil {
		return nil, err
	}

	linked := a.PartnerID() == b.ID && b.PartnerID() == a.ID
	if linked && (a.IsConfirmed || !confirm) {
		return &model.MatchMutation{
			A:                a.Clone(),
			B:                b.Clone(),
			ExpectedVersionA: a.Version,
			ExpectedVersionB: b.Version,
			Score:            deref(a.MatchConfidence),
			NoOp:             true,
		}, nil
	}

	for _, side := range []*model.Transaction{a, b} {
		other := b
		if side == b {
			other = a
		}
		partner := side.PartnerID()
		if partner == "" || partner == other.ID {
			continue
		}
		if side.IsConfirmed {
			return nil, fmt.Errorf("%w: transaction %s is confirmed with %s", common.ErrConflict, side.ID, partner)
		}
		return nil, fmt.Errorf("%w: transaction %s is pending review with %s", common.ErrConflict, side.ID, partner)
	}

	score, _ := m.pairScore(*a, *b, DateDiffDays(a.Date, b.Date))
	mutation := &model.MatchMutation{
		ExpectedVersionA: a.Version,
		ExpectedVersionB: b.Version,
		Score:            score,
	}

	now := m.now()
	for _, pair := range [][2]*model.Transaction{{a, b}, {b, a}} {
		self, other := pair[0], pair[1]
		partnerID := other.ID
		confidence := score
		self.MatchedTransactionID = &partnerID
		self.MatchConfidence = &confidence
		self.IsConfirmed = confirm
		self.Version++
		self.UpdatedAt = now
	}

	mutation.A = a.Clone()
	mutation.B = b.Clone()
	return mutation, nil
}

// Unmatch clears the link between a and b. Both must currently point at each
// other.
func (m *Matcher) Unmatch(idx *Index, aID, bID string) (*model.MatchMutation, error) {
	a, b, err := idx.pair(aID, bID)
	if err != nil {
		return nil, err
	}
	if a.PartnerID() != b.ID || b.PartnerID() != a.ID {
		return nil, fmt.Errorf("%w: %s and %s are not matched to each other", common.ErrInvalidPair, a.ID, b.ID)
	}

	mutation := &model.MatchMutation{
		ExpectedVersionA: a.Version,
		ExpectedVersionB: b.Version,
	}

	now := m.now()
	for _, txn := range []*model.Transaction{a, b} {
		txn.MatchedTransactionID = nil
		txn.MatchConfidence = nil
		txn.IsConfirmed = false
		txn.Version++
		txn.UpdatedAt = now
	}

	mutation.A = a.Clone()
	mutation.B = b.Clone()
	return mutation, nil
}

// Reject records the pair as suppressed. Transactions are not modified.
func (m *Matcher) Reject(idx *Index, suppressed *Suppressions, aID, bID string) (Suppression, error) {
	a, b, err := idx.pair(aID, bID)
	if err != nil {
		return Suppression{}, err
	}
	out, in := *a, *b
	if out.Type == model.PaidIn {
		out, in = in, out
	}
	return suppressed.Add(out, in, m.now()), nil
}

// pair resolves and validates two ids before any mutation happens.
func (i *Index) pair(aID, bID string) (*model.Transaction, *model.Transaction, error) {
	if aID == "" || bID == "" {
		return nil, nil, fmt.Errorf("%w: transaction ids are required", common.ErrValidation)
	}
	if aID == bID {
		return nil, nil, fmt.Errorf("%w: cannot match transaction %s with itself", common.ErrInvalidPair, aID)
	}

	a, ok := i.byID[aID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, aID)
	}
	b, ok := i.byID[bID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, bID)
	}

	if !a.Type.Valid() || !b.Type.Valid() {
		return nil, nil, fmt.Errorf("%w: transaction type must be %s or %s", common.ErrValidation, model.PaidIn, model.PaidOut)
	}
	if a.Type == b.Type {
		return nil, nil, fmt.Errorf("%w: both transactions are %s", common.ErrInvalidPair, a.Type)
	}
	if a.UserID != b.UserID {
		return nil, nil, fmt.Errorf("%w: transactions belong to different users", common.ErrInvalidPair)
	}
	return a, b, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
