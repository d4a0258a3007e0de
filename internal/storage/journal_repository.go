package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/IliyaBaranov/agora/internal/errors"
	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/types"
)

const maxJournalPage = 500

// JournalRepository persists journal entries in Postgres
type JournalRepository struct {
	db *PostgresDB
}

// NewJournalRepository creates a new journal repository
func NewJournalRepository(db *PostgresDB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Append inserts an entry, filling ID and CreatedAt when unset
func (r *JournalRepository) Append(ctx context.Context, entry *models.JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO operation_journal (id, request_id, operation, entity_type, entity_id, policy, outcome, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		entry.ID,
		entry.RequestID,
		entry.Operation,
		entry.EntityType,
		entry.EntityID,
		string(entry.Policy),
		string(entry.Outcome),
		entry.Error,
		entry.CreatedAt,
	)
	if err != nil {
		return errors.NewDatabaseError("append journal entry", err)
	}
	return nil
}

// Recent lists entries newest first
func (r *JournalRepository) Recent(ctx context.Context, limit int) ([]models.JournalEntry, error) {
	if limit <= 0 || limit > maxJournalPage {
		limit = maxJournalPage
	}

	query := `
		SELECT id::text, request_id, operation, entity_type, entity_id, policy, outcome, error, created_at
		FROM operation_journal
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("list journal entries", err)
	}
	defer rows.Close()

	entries := make([]models.JournalEntry, 0, limit)
	for rows.Next() {
		var (
			e               models.JournalEntry
			policy, outcome string
		)
		if err := rows.Scan(
			&e.ID,
			&e.RequestID,
			&e.Operation,
			&e.EntityType,
			&e.EntityID,
			&policy,
			&outcome,
			&e.Error,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Policy = types.UpdatePolicy(policy)
		e.Outcome = types.Outcome(outcome)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("iterate journal entries", err)
	}
	return entries, nil
}
