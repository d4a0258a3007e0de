// Package models provides data models for the marketplace client.
package models

import (
	"time"
)

// User represents an account mirrored from the backend
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    *string   `json:"avatar,omitempty"`
	Credits   int64     `json:"credits"`
	CreatedAt time.Time `json:"createdAt"`
}

// UnknownUser is the placeholder shown for memberships whose user is not in the snapshot
func UnknownUser(id string) User {
	return User{
		ID:        id,
		Name:      "Unknown",
		CreatedAt: time.Now(),
	}
}
