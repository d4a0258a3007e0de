package store

import (
	"context"

	"github.com/IliyaBaranov/agora/internal/errors"
	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/types"
)

// SetLocalRole records a presentation-only role for the signed-in user in a
// marketplace. Only EffectiveRole reads it.
func (s *Store) SetLocalRole(ctx context.Context, marketplaceID string, role types.UserRole) error {
	if !role.Valid() {
		return errors.NewInvalidParameterError("role", "unknown role "+string(role))
	}
	ctx = withRequestID(ctx)

	s.mu.Lock()
	s.localRoles[marketplaceID] = role
	s.mu.Unlock()

	s.record(ctx, operation{name: "set_local_role", entityType: "marketplace", entityID: marketplaceID, policy: types.PolicyLocalOnly},
		types.OutcomeLocalOnly, nil)
	return nil
}

// SetAdminRole changes another member's role once the backend accepts it
func (s *Store) SetAdminRole(ctx context.Context, marketplaceID, userID string, role types.UserRole) error {
	if !role.Valid() {
		return errors.NewInvalidParameterError("role", "unknown role "+string(role))
	}
	if !s.SignedIn() {
		return errors.NewNotSignedInError("set role")
	}
	ctx = withRequestID(ctx)
	op := operation{name: "set_role", entityType: "membership", entityID: marketplaceID + "/" + userID, policy: types.PolicyConfirmFirst}

	if err := s.backend.SetRole(ctx, marketplaceID, userID, role); err != nil {
		s.record(ctx, op, types.OutcomeFailed, err)
		return err
	}

	s.updateMembership(userID, marketplaceID, func(mu *models.MarketplaceUser) {
		mu.Role = role
	})
	s.record(ctx, op, types.OutcomeConfirmed, nil)
	return nil
}

// ApproveProducer accepts a producer application
func (s *Store) ApproveProducer(ctx context.Context, marketplaceID, userID string) error {
	return s.decideApplication(ctx, marketplaceID, userID, types.ApprovalApproved, types.RoleProducer)
}

// RejectProducer declines a producer application; the user stays a customer
func (s *Store) RejectProducer(ctx context.Context, marketplaceID, userID string) error {
	return s.decideApplication(ctx, marketplaceID, userID, types.ApprovalRejected, types.RoleCustomer)
}

func (s *Store) decideApplication(ctx context.Context, marketplaceID, userID string, approval types.ApprovalStatus, role types.UserRole) error {
	if !s.SignedIn() {
		return errors.NewNotSignedInError("review producer")
	}
	ctx = withRequestID(ctx)
	name := "approve_producer"
	if approval == types.ApprovalRejected {
		name = "reject_producer"
	}
	op := operation{name: name, entityType: "membership", entityID: marketplaceID + "/" + userID, policy: types.PolicyConfirmFirst}

	if err := s.backend.SetApproval(ctx, marketplaceID, userID, approval); err != nil {
		s.record(ctx, op, types.OutcomeFailed, err)
		return err
	}

	s.updateMembership(userID, marketplaceID, func(mu *models.MarketplaceUser) {
		offline := types.ProducerOffline
		a := approval
		mu.Role = role
		mu.ApprovalStatus = &a
		mu.Status = &offline
	})
	s.record(ctx, op, types.OutcomeConfirmed, nil)
	return nil
}

// RegisterAsProducer submits the signed-in user's producer application. The
// pending membership shows immediately and is reverted if the backend refuses.
func (s *Store) RegisterAsProducer(ctx context.Context, marketplaceID, description string) error {
	ctx = withRequestID(ctx)
	op := operation{name: "register_producer", entityType: "marketplace", entityID: marketplaceID, policy: types.PolicyOptimistic}

	s.mu.Lock()
	if s.currentUser == nil {
		s.mu.Unlock()
		return errors.NewNotSignedInError("register as producer")
	}
	userID := s.currentUser.ID
	pending := types.ApprovalPending
	desc := description

	var previous *models.MarketplaceUser
	if i := s.findMembershipLocked(userID, marketplaceID); i >= 0 {
		prev := s.memberships[i].Clone()
		previous = &prev
		s.memberships[i].ApprovalStatus = &pending
		s.memberships[i].Description = &desc
	} else {
		offline := types.ProducerOffline
		s.memberships = append(s.memberships, models.MarketplaceUser{
			UserID:         userID,
			MarketplaceID:  marketplaceID,
			Role:           types.RoleCustomer,
			Status:         &offline,
			ApprovalStatus: &pending,
			Description:    &desc,
		})
	}
	applied := s.applied
	s.mu.Unlock()

	if err := s.backend.RegisterProducer(ctx, marketplaceID, description); err != nil {
		s.mu.Lock()
		// a bootstrap since then carries the server's view, keep it
		if s.applied == applied {
			i := s.findMembershipLocked(userID, marketplaceID)
			switch {
			case i >= 0 && previous != nil:
				s.memberships[i] = *previous
			case i >= 0:
				s.memberships = append(s.memberships[:i], s.memberships[i+1:]...)
			}
		}
		s.mu.Unlock()
		s.record(ctx, op, types.OutcomeRolledBack, err)
		return err
	}

	s.record(ctx, op, types.OutcomeConfirmed, nil)
	if err := s.Bootstrap(ctx); err != nil {
		s.logger.WithError(err).WithField("marketplaceId", marketplaceID).
			Warn("Refresh after producer registration failed")
	}
	return nil
}

// UpdateProducerStatus changes the signed-in user's availability in a marketplace
func (s *Store) UpdateProducerStatus(ctx context.Context, marketplaceID string, status types.ProducerStatus) error {
	if !status.Valid() {
		return errors.NewInvalidParameterError("status", "unknown producer status "+string(status))
	}
	userID := s.currentUserID()
	if userID == "" {
		return errors.NewNotSignedInError("update producer status")
	}
	ctx = withRequestID(ctx)
	op := operation{name: "update_producer_status", entityType: "membership", entityID: marketplaceID + "/" + userID, policy: types.PolicyConfirmFirst}

	if err := s.backend.UpdateProducerStatus(ctx, marketplaceID, status); err != nil {
		s.record(ctx, op, types.OutcomeFailed, err)
		return err
	}

	s.updateMembership(userID, marketplaceID, func(mu *models.MarketplaceUser) {
		st := status
		mu.Status = &st
	})
	s.record(ctx, op, types.OutcomeConfirmed, nil)
	return nil
}

// updateMembership applies fn to an existing membership. Unknown memberships are left to the next bootstrap.
func (s *Store) updateMembership(userID, marketplaceID string, fn func(*models.MarketplaceUser)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findMembershipLocked(userID, marketplaceID)
	if i < 0 {
		return false
	}
	fn(&s.memberships[i])
	return true
}
