package models

import (
	"time"

	"github.com/IliyaBaranov/agora/internal/types"
)

// Marketplace represents a tenant exchange with its own members and jobs
type Marketplace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"createdAt"`
	OwnerID   string    `json:"ownerId"`
}

// MarketplaceUser is the membership record of one user in one marketplace.
// Keyed by (UserID, MarketplaceID).
type MarketplaceUser struct {
	UserID         string                `json:"userId"`
	MarketplaceID  string                `json:"marketplaceId"`
	Role           types.UserRole        `json:"role"`
	Status         *types.ProducerStatus `json:"status,omitempty"`
	ApprovalStatus *types.ApprovalStatus `json:"approvalStatus,omitempty"`
	Rating         *float64              `json:"rating,omitempty"`
	CompletedJobs  *int64                `json:"completedJobs,omitempty"`
	JobsCreated    *int64                `json:"jobsCreated,omitempty"`
	Earnings       *int64                `json:"earnings,omitempty"`
	Description    *string               `json:"description,omitempty"`
}

// Matches reports whether the membership belongs to the given user and marketplace
func (m *MarketplaceUser) Matches(userID, marketplaceID string) bool {
	return m.UserID == userID && m.MarketplaceID == marketplaceID
}

// Clone returns a deep copy of the membership
func (m MarketplaceUser) Clone() MarketplaceUser {
	out := m
	if m.Status != nil {
		v := *m.Status
		out.Status = &v
	}
	if m.ApprovalStatus != nil {
		v := *m.ApprovalStatus
		out.ApprovalStatus = &v
	}
	out.Rating = cloneFloat(m.Rating)
	out.CompletedJobs = cloneInt(m.CompletedJobs)
	out.JobsCreated = cloneInt(m.JobsCreated)
	out.Earnings = cloneInt(m.Earnings)
	out.Description = cloneString(m.Description)
	return out
}

// MemberView joins a membership with its user
type MemberView struct {
	MarketplaceUser
	User User `json:"user"`
}

// FavoriteMarketplace marks a marketplace bookmarked by a user
type FavoriteMarketplace struct {
	UserID        string `json:"userId"`
	MarketplaceID string `json:"marketplaceId"`
}
