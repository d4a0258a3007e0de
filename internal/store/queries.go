package store

import (
	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/types"
)

// CurrentUser returns a copy of the signed-in user, or nil
func (s *Store) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentUser == nil {
		return nil
	}
	u := *s.currentUser
	if u.Avatar != nil {
		avatar := *u.Avatar
		u.Avatar = &avatar
	}
	return &u
}

// SignedIn reports whether a session is mirrored
func (s *Store) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUser != nil
}

// Snapshot returns a deep copy of the whole state
func (s *Store) Snapshot() *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Users returns all known users
func (s *Store) Users() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked().AllUsers
}

// UserByID looks a user up in the user list
func (s *Store) UserByID(userID string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == userID {
			return u, true
		}
	}
	return models.User{}, false
}

// Marketplaces returns all marketplaces
func (s *Store) Marketplaces() []models.Marketplace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Marketplace{}, s.marketplaces...)
}

// MarketplaceBySlug is a case-sensitive exact match
func (s *Store) MarketplaceBySlug(slug string) (models.Marketplace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.marketplaces {
		if m.Slug == slug {
			return m, true
		}
	}
	return models.Marketplace{}, false
}

// MarketplaceByID looks a marketplace up by identifier
func (s *Store) MarketplaceByID(marketplaceID string) (models.Marketplace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.marketplaces {
		if m.ID == marketplaceID {
			return m, true
		}
	}
	return models.Marketplace{}, false
}

// Favorites returns every favorite record
func (s *Store) Favorites() []models.FavoriteMarketplace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FavoriteMarketplace{}, s.favorites...)
}

// IsFavorite reports whether the signed-in user bookmarked the marketplace
func (s *Store) IsFavorite(marketplaceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentUser == nil {
		return false
	}
	return s.findFavoriteLocked(s.currentUser.ID, marketplaceID) >= 0
}

// Memberships returns every membership record
func (s *Store) Memberships() []models.MarketplaceUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MarketplaceUser, len(s.memberships))
	for i, mu := range s.memberships {
		out[i] = mu.Clone()
	}
	return out
}

// MembersOf joins the memberships of a marketplace with their users
func (s *Store) MembersOf(marketplaceID string) []models.MemberView {
	return s.members(marketplaceID, func(models.MarketplaceUser) bool { return true })
}

// ProducersByApproval lists members of a marketplace in the given approval state
func (s *Store) ProducersByApproval(marketplaceID string, approval types.ApprovalStatus) []models.MemberView {
	return s.members(marketplaceID, func(mu models.MarketplaceUser) bool {
		return mu.ApprovalStatus != nil && *mu.ApprovalStatus == approval
	})
}

func (s *Store) members(marketplaceID string, keep func(models.MarketplaceUser) bool) []models.MemberView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.MemberView{}
	for _, mu := range s.memberships {
		if mu.MarketplaceID != marketplaceID || !keep(mu) {
			continue
		}
		view := models.MemberView{MarketplaceUser: mu.Clone(), User: models.UnknownUser(mu.UserID)}
		for _, u := range s.users {
			if u.ID == mu.UserID {
				view.User = u
				break
			}
		}
		out = append(out, view)
	}
	return out
}

// ownMembershipLocked returns the signed-in user's membership in a marketplace
func (s *Store) ownMembershipLocked(marketplaceID string) *models.MarketplaceUser {
	if s.currentUser == nil {
		return nil
	}
	if i := s.findMembershipLocked(s.currentUser.ID, marketplaceID); i >= 0 {
		return &s.memberships[i]
	}
	return nil
}

// RoleIn returns the signed-in user's role from membership state, ignoring any local override
func (s *Store) RoleIn(marketplaceID string) *types.UserRole {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mu := s.ownMembershipLocked(marketplaceID)
	if mu == nil || mu.Role == "" {
		return nil
	}
	role := mu.Role
	return &role
}

// EffectiveRole prefers the local override and falls back to RoleIn.
// Only presentation may use it.
func (s *Store) EffectiveRole(marketplaceID string) *types.UserRole {
	s.mu.RLock()
	role, ok := s.localRoles[marketplaceID]
	s.mu.RUnlock()
	if ok {
		return &role
	}
	return s.RoleIn(marketplaceID)
}

// ProducerStatusIn returns the signed-in user's availability in a marketplace
func (s *Store) ProducerStatusIn(marketplaceID string) *types.ProducerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mu := s.ownMembershipLocked(marketplaceID)
	if mu == nil || mu.Status == nil {
		return nil
	}
	status := *mu.Status
	return &status
}

// ProducerEarnings returns the signed-in producer's earnings in a marketplace, 0 when unknown
func (s *Store) ProducerEarnings(marketplaceID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mu := s.ownMembershipLocked(marketplaceID)
	if mu == nil || mu.Earnings == nil {
		return 0
	}
	return *mu.Earnings
}

func (s *Store) filterJobs(keep func(*models.Job) bool) []models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Job{}
	for i := range s.jobs {
		if keep(&s.jobs[i]) {
			out = append(out, s.jobs[i].Clone())
		}
	}
	return out
}

// JobsIn lists every job of a marketplace
func (s *Store) JobsIn(marketplaceID string) []models.Job {
	return s.filterJobs(func(j *models.Job) bool { return j.MarketplaceID == marketplaceID })
}

// OpenJobs lists the jobs of a marketplace nobody has taken
func (s *Store) OpenJobs(marketplaceID string) []models.Job {
	return s.filterJobs(func(j *models.Job) bool {
		return j.MarketplaceID == marketplaceID && j.Status == types.JobOpen
	})
}

// CustomerJobs lists the jobs the signed-in user created in a marketplace
func (s *Store) CustomerJobs(marketplaceID string) []models.Job {
	userID := s.currentUserID()
	if userID == "" {
		return []models.Job{}
	}
	return s.filterJobs(func(j *models.Job) bool {
		return j.MarketplaceID == marketplaceID && j.CustomerID == userID
	})
}

// JobByID looks a job up by identifier
func (s *Store) JobByID(jobID string) (models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.findJobLocked(jobID); i >= 0 {
		return s.jobs[i].Clone(), true
	}
	return models.Job{}, false
}
