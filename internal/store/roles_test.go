package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IliyaBaranov/agora/internal/errors"
	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/types"
)

func membership(t *testing.T, s *Store, userID, marketplaceID string) models.MarketplaceUser {
	t.Helper()
	for _, mu := range s.Memberships() {
		if mu.Matches(userID, marketplaceID) {
			return mu
		}
	}
	t.Fatalf("no membership for %s in %s", userID, marketplaceID)
	return models.MarketplaceUser{}
}

// signedInAs switches the snapshot's session to another user of the fixture
func signedInAs(snap *models.Snapshot, userID string) *models.Snapshot {
	for _, u := range snap.AllUsers {
		if u.ID == userID {
			u := u
			snap.CurrentUser = &u
		}
	}
	return snap
}

func TestLocalRoleNeverReachesBackend(t *testing.T) {
	s, backend, journal := newTestStore(t, testSnapshot())

	require.NoError(t, s.SetLocalRole(context.Background(), "m1", types.RoleAdmin))
	assert.Equal(t, types.RoleAdmin, *s.EffectiveRole("m1"))
	assert.Equal(t, types.RoleCustomer, *s.RoleIn("m1"), "confirmed role is untouched")
	assert.Equal(t, 0, backend.count("set_role"))

	entry := lastEntry(t, journal)
	assert.Equal(t, types.PolicyLocalOnly, entry.Policy)
	assert.Equal(t, types.OutcomeLocalOnly, entry.Outcome)

	err := s.SetLocalRole(context.Background(), "m1", types.UserRole("owner"))
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestSetAdminRole(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		s, _, _ := newTestStore(t, signedInAs(testSnapshot(), "u3"))
		require.NoError(t, s.SetAdminRole(context.Background(), "m1", "u2", types.RoleCustomer))
		assert.Equal(t, types.RoleCustomer, membership(t, s, "u2", "m1").Role)
	})

	t.Run("refused", func(t *testing.T) {
		s, backend, journal := newTestStore(t, signedInAs(testSnapshot(), "u3"))
		backend.failOn("set_role", errors.NewAPIError("admin_set_role", 403, "forbidden"))

		require.Error(t, s.SetAdminRole(context.Background(), "m1", "u2", types.RoleCustomer))
		assert.Equal(t, types.RoleProducer, membership(t, s, "u2", "m1").Role)
		assert.Equal(t, types.OutcomeFailed, lastEntry(t, journal).Outcome)
	})
}

func TestApproveProducer_ConfirmFirst(t *testing.T) {
	s, backend, journal := newTestStore(t, signedInAs(testSnapshot(), "u3"))
	backend.failOn("set_approval", errBackendDown)

	require.Error(t, s.ApproveProducer(context.Background(), "m1", "u4"))
	mu := membership(t, s, "u4", "m1")
	assert.Equal(t, types.RoleCustomer, mu.Role)
	assert.Equal(t, types.ApprovalPending, *mu.ApprovalStatus)
	assert.Equal(t, types.OutcomeFailed, lastEntry(t, journal).Outcome)

	backend.failOn("set_approval", nil)
	require.NoError(t, s.ApproveProducer(context.Background(), "m1", "u4"))
	mu = membership(t, s, "u4", "m1")
	assert.Equal(t, types.RoleProducer, mu.Role)
	assert.Equal(t, types.ApprovalApproved, *mu.ApprovalStatus)
	assert.Equal(t, types.ProducerOffline, *mu.Status)
	assert.Equal(t, types.ApprovalApproved, backend.lastApproval)

	entry := lastEntry(t, journal)
	assert.Equal(t, "approve_producer", entry.Operation)
	assert.Equal(t, types.OutcomeConfirmed, entry.Outcome)
}

func TestRejectProducer(t *testing.T) {
	s, backend, _ := newTestStore(t, signedInAs(testSnapshot(), "u3"))

	require.NoError(t, s.RejectProducer(context.Background(), "m1", "u4"))
	mu := membership(t, s, "u4", "m1")
	assert.Equal(t, types.RoleCustomer, mu.Role)
	assert.Equal(t, types.ApprovalRejected, *mu.ApprovalStatus)
	assert.Equal(t, types.ProducerOffline, *mu.Status)
	assert.Equal(t, types.ApprovalRejected, backend.lastApproval)

	assert.Empty(t, s.ProducersByApproval("m1", types.ApprovalPending))
	assert.Len(t, s.ProducersByApproval("m1", types.ApprovalRejected), 1)
}

func TestRegisterAsProducer_RollsBack(t *testing.T) {
	s, backend, journal := newTestStore(t, testSnapshot())
	backend.failOn("register_producer", errors.NewAPIError("producers", 200, "registration closed"))

	err := s.RegisterAsProducer(context.Background(), "m1", "5 years experience")
	require.Error(t, err)

	mu := membership(t, s, "u1", "m1")
	assert.Equal(t, types.RoleCustomer, mu.Role)
	assert.Nil(t, mu.ApprovalStatus)
	assert.Nil(t, mu.Description)
	assert.Equal(t, types.OutcomeRolledBack, lastEntry(t, journal).Outcome)
	assert.Equal(t, 1, backend.count("me"), "no refresh after a refusal")
}

func TestRegisterAsProducer_NewMembershipRollsBack(t *testing.T) {
	s, backend, _ := newTestStore(t, testSnapshot())
	backend.failOn("register_producer", errBackendDown)

	require.Error(t, s.RegisterAsProducer(context.Background(), "m2", "tiles"))
	for _, mu := range s.Memberships() {
		assert.False(t, mu.Matches("u1", "m2"))
	}
}

func TestRegisterThenApprove(t *testing.T) {
	ctx := context.Background()
	s, backend, journal := newTestStore(t, testSnapshot())

	// what the backend reports once the application is stored
	applied := testSnapshot()
	for i := range applied.MarketplaceUsers {
		if applied.MarketplaceUsers[i].Matches("u1", "m1") {
			applied.MarketplaceUsers[i].ApprovalStatus = approvalPtr(types.ApprovalPending)
			applied.MarketplaceUsers[i].Description = strPtr("5 years experience")
		}
	}
	backend.setSnapshot(applied)

	require.NoError(t, s.RegisterAsProducer(ctx, "m1", "5 years experience"))
	assert.Equal(t, 2, backend.count("me"))
	entries, err := journal.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "register_producer", entries[0].Operation)
	assert.Equal(t, types.OutcomeConfirmed, entries[0].Outcome)

	pending := s.ProducersByApproval("m1", types.ApprovalPending)
	require.Len(t, pending, 2)
	var ann models.MemberView
	for _, v := range pending {
		if v.UserID == "u1" {
			ann = v
		}
	}
	assert.Equal(t, "Ann", ann.User.Name)
	assert.Equal(t, "5 years experience", *ann.Description)

	require.NoError(t, s.ApproveProducer(ctx, "m1", "u1"))
	assert.Equal(t, types.RoleProducer, *s.RoleIn("m1"))
	assert.Equal(t, types.ProducerOffline, *s.ProducerStatusIn("m1"))
	assert.Len(t, s.ProducersByApproval("m1", types.ApprovalApproved), 2)
}

func TestUpdateProducerStatus(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		s, _, _ := newTestStore(t, signedInAs(testSnapshot(), "u2"))
		require.NoError(t, s.UpdateProducerStatus(context.Background(), "m1", types.ProducerOffline))
		assert.Equal(t, types.ProducerOffline, *s.ProducerStatusIn("m1"))
	})

	t.Run("refused", func(t *testing.T) {
		s, backend, _ := newTestStore(t, signedInAs(testSnapshot(), "u2"))
		backend.failOn("producer_status", errors.NewAPIError("producer_update_status", 200, "status change not confirmed"))

		require.Error(t, s.UpdateProducerStatus(context.Background(), "m1", types.ProducerOffline))
		assert.Equal(t, types.ProducerOnline, *s.ProducerStatusIn("m1"))
	})

	t.Run("unknown status", func(t *testing.T) {
		s, backend, _ := newTestStore(t, signedInAs(testSnapshot(), "u2"))
		err := s.UpdateProducerStatus(context.Background(), "m1", types.ProducerStatus("BUSY"))
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		assert.Equal(t, 0, backend.count("producer_status"))
	})
}

func TestMembersOf_UnknownUserPlaceholder(t *testing.T) {
	s, _, _ := newTestStore(t, testSnapshot())

	members := s.MembersOf("m1")
	require.Len(t, members, 4)
	for _, m := range members {
		if m.UserID == "u4" {
			assert.Equal(t, "Unknown", m.User.Name)
		}
	}
	assert.Empty(t, s.MembersOf("m9"))
}
