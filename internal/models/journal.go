package models

import (
	"time"

	"github.com/IliyaBaranov/agora/internal/types"
)

// JournalEntry records one mutating store operation and how it reconciled with the backend
type JournalEntry struct {
	ID         string             `json:"id" db:"id"`
	RequestID  string             `json:"requestId,omitempty" db:"request_id"`
	Operation  string             `json:"operation" db:"operation"`
	EntityType string             `json:"entityType" db:"entity_type"`
	EntityID   string             `json:"entityId" db:"entity_id"`
	Policy     types.UpdatePolicy `json:"policy" db:"policy"`
	Outcome    types.Outcome      `json:"outcome" db:"outcome"`
	Error      *string            `json:"error,omitempty" db:"error"`
	CreatedAt  time.Time          `json:"createdAt" db:"created_at"`
}
