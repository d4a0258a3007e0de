package store

import (
	"context"

	"github.com/IliyaBaranov/agora/internal/errors"
	"github.com/IliyaBaranov/agora/internal/types"
)

// The backend has no credits endpoint. These mutations are local only and
// are overwritten by the next bootstrap; the journal keeps the gap visible.

// GrantCredits adds amount to userID's balance
func (s *Store) GrantCredits(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return errors.NewInvalidParameterError("amount", "must be positive")
	}
	ctx = withRequestID(ctx)
	op := operation{name: "grant_credits", entityType: "user", entityID: userID, policy: types.PolicyLocalOnly}

	s.mu.Lock()
	s.adjustCreditsLocked(userID, amount)
	s.mu.Unlock()

	s.record(ctx, op, types.OutcomeLocalOnly, nil)
	return nil
}

// DeductCredits debits the signed-in user. It reports false, changing nothing,
// when signed out, when amount is negative or when the balance does not cover
// amount. A zero debit succeeds.
func (s *Store) DeductCredits(ctx context.Context, amount int64) bool {
	if amount < 0 {
		return false
	}
	ctx = withRequestID(ctx)

	s.mu.Lock()
	if s.currentUser == nil || s.currentUser.Credits < amount {
		s.mu.Unlock()
		return false
	}
	userID := s.currentUser.ID
	s.adjustCreditsLocked(userID, -amount)
	s.mu.Unlock()

	s.record(ctx, operation{name: "deduct_credits", entityType: "user", entityID: userID, policy: types.PolicyLocalOnly},
		types.OutcomeLocalOnly, nil)
	return true
}

// TopUpCredits adds amount to the signed-in user
func (s *Store) TopUpCredits(ctx context.Context, amount int64) error {
	if amount <= 0 {
		return errors.NewInvalidParameterError("amount", "must be positive")
	}
	ctx = withRequestID(ctx)

	s.mu.Lock()
	if s.currentUser == nil {
		s.mu.Unlock()
		return errors.NewNotSignedInError("top up")
	}
	userID := s.currentUser.ID
	s.adjustCreditsLocked(userID, amount)
	s.mu.Unlock()

	s.record(ctx, operation{name: "top_up_credits", entityType: "user", entityID: userID, policy: types.PolicyLocalOnly},
		types.OutcomeLocalOnly, nil)
	return nil
}
