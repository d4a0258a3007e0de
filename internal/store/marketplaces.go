package store

import (
	"context"
	"regexp"
	"strings"

	"github.com/IliyaBaranov/agora/internal/errors"
	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/types"
)

var (
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugInvalid = regexp.MustCompile(`[^a-z0-9-]`)
)

// Slugify derives a URL slug from a marketplace name
func Slugify(name string) string {
	slug := strings.TrimSpace(strings.ToLower(name))
	slug = slugSpaces.ReplaceAllString(slug, "-")
	return slugInvalid.ReplaceAllString(slug, "")
}

// CreateMarketplace creates a marketplace owned by the signed-in user. On success the
// creator gets an admin membership and a favorite for it, whatever owner the backend reports.
func (s *Store) CreateMarketplace(ctx context.Context, name, slug, city string) (*models.Marketplace, error) {
	userID := s.currentUserID()
	if userID == "" {
		return nil, errors.NewNotSignedInError("create marketplace")
	}
	name = strings.TrimSpace(name)
	city = strings.TrimSpace(city)
	if name == "" {
		return nil, errors.NewInvalidParameterError("name", "must not be empty")
	}
	if city == "" {
		return nil, errors.NewInvalidParameterError("city", "must not be empty")
	}
	if slug = strings.TrimSpace(slug); slug == "" {
		slug = Slugify(name)
	}

	ctx = withRequestID(ctx)
	op := operation{name: "create_marketplace", entityType: "marketplace", entityID: slug, policy: types.PolicyConfirmFirst}

	created, err := s.backend.CreateMarketplace(ctx, name, slug, city)
	if err != nil {
		s.record(ctx, op, types.OutcomeFailed, err)
		return nil, err
	}
	if created.OwnerID == "" {
		created.OwnerID = userID
	}
	op.entityID = created.ID

	s.mu.Lock()
	s.marketplaces = append([]models.Marketplace{*created}, s.marketplaces...)
	if s.findMembershipLocked(userID, created.ID) < 0 {
		online := types.ProducerOnline
		approved := types.ApprovalApproved
		s.memberships = append(s.memberships, models.MarketplaceUser{
			UserID:         userID,
			MarketplaceID:  created.ID,
			Role:           types.RoleAdmin,
			Status:         &online,
			ApprovalStatus: &approved,
			CompletedJobs:  int64Ptr(0),
			JobsCreated:    int64Ptr(0),
			Earnings:       int64Ptr(0),
		})
	}
	if s.findFavoriteLocked(userID, created.ID) < 0 {
		s.favorites = append(s.favorites, models.FavoriteMarketplace{UserID: userID, MarketplaceID: created.ID})
	}
	s.mu.Unlock()

	s.record(ctx, op, types.OutcomeConfirmed, nil)
	out := *created
	return &out, nil
}

// AddFavorite bookmarks a marketplace for the signed-in user.
// It is a no-op when signed out or already bookmarked.
func (s *Store) AddFavorite(ctx context.Context, marketplaceID string) error {
	ctx = withRequestID(ctx)
	op := operation{name: "add_favorite", entityType: "marketplace", entityID: marketplaceID, policy: types.PolicyOptimistic}

	s.mu.Lock()
	if s.currentUser == nil || s.findFavoriteLocked(s.currentUser.ID, marketplaceID) >= 0 {
		s.mu.Unlock()
		return nil
	}
	fav := models.FavoriteMarketplace{UserID: s.currentUser.ID, MarketplaceID: marketplaceID}
	s.favorites = append(s.favorites, fav)
	applied := s.applied
	s.mu.Unlock()

	if err := s.backend.AddFavorite(ctx, marketplaceID); err != nil {
		s.mu.Lock()
		if s.applied == applied {
			if i := s.findFavoriteLocked(fav.UserID, fav.MarketplaceID); i >= 0 {
				s.favorites = append(s.favorites[:i], s.favorites[i+1:]...)
			}
		}
		s.mu.Unlock()
		s.record(ctx, op, types.OutcomeRolledBack, err)
		return err
	}

	s.record(ctx, op, types.OutcomeConfirmed, nil)
	return nil
}

// RemoveFavorite drops the signed-in user's bookmark. It is a no-op when signed out.
func (s *Store) RemoveFavorite(ctx context.Context, marketplaceID string) error {
	ctx = withRequestID(ctx)
	op := operation{name: "remove_favorite", entityType: "marketplace", entityID: marketplaceID, policy: types.PolicyOptimistic}

	s.mu.Lock()
	if s.currentUser == nil {
		s.mu.Unlock()
		return nil
	}
	userID := s.currentUser.ID
	var removed *models.FavoriteMarketplace
	kept := s.favorites[:0:0]
	for _, f := range s.favorites {
		if f.UserID == userID && f.MarketplaceID == marketplaceID {
			f := f
			removed = &f
			continue
		}
		kept = append(kept, f)
	}
	s.favorites = kept
	applied := s.applied
	s.mu.Unlock()

	if err := s.backend.RemoveFavorite(ctx, marketplaceID); err != nil {
		s.mu.Lock()
		if removed != nil && s.applied == applied && s.findFavoriteLocked(userID, marketplaceID) < 0 {
			s.favorites = append(s.favorites, *removed)
		}
		s.mu.Unlock()
		s.record(ctx, op, types.OutcomeRolledBack, err)
		return err
	}

	s.record(ctx, op, types.OutcomeConfirmed, nil)
	return nil
}

// AutoJoin makes the signed-in user a customer of a marketplace. It reports
// whether the backend created a new membership.
func (s *Store) AutoJoin(ctx context.Context, marketplaceID string) (bool, error) {
	userID := s.currentUserID()
	if userID == "" {
		return false, errors.NewNotSignedInError("join marketplace")
	}
	ctx = withRequestID(ctx)
	op := operation{name: "auto_join", entityType: "marketplace", entityID: marketplaceID, policy: types.PolicyConfirmFirst}

	created, err := s.backend.AutoJoin(ctx, marketplaceID)
	if err != nil {
		s.record(ctx, op, types.OutcomeFailed, err)
		return false, err
	}
	s.record(ctx, op, types.OutcomeConfirmed, nil)
	if !created {
		return false, nil
	}

	if err := s.Bootstrap(ctx); err != nil {
		s.mu.Lock()
		if s.currentUser != nil && s.currentUser.ID == userID && s.findMembershipLocked(userID, marketplaceID) < 0 {
			s.memberships = append(s.memberships, models.MarketplaceUser{
				UserID:        userID,
				MarketplaceID: marketplaceID,
				Role:          types.RoleCustomer,
			})
		}
		s.mu.Unlock()
	}
	return true, nil
}
