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

// ClickHouseJournal keeps journal entries in an append-only MergeTree table
type ClickHouseJournal struct {
	db *ClickHouseDB
}

// NewClickHouseJournal creates a journal over db
func NewClickHouseJournal(db *ClickHouseDB) *ClickHouseJournal {
	return &ClickHouseJournal{db: db}
}

// Append inserts an entry, filling ID and CreatedAt when unset
func (j *ClickHouseJournal) Append(ctx context.Context, entry *models.JournalEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO operation_journal (id, request_id, operation, entity_type, entity_id, policy, outcome, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := j.db.conn.Exec(ctx, query,
		entry.ID,
		entry.RequestID,
		entry.Operation,
		entry.EntityType,
		entry.EntityID,
		string(entry.Policy),
		string(entry.Outcome),
		entry.Error,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return errors.NewDatabaseError("append journal entry", err)
	}
	return nil
}

// Recent lists entries newest first
func (j *ClickHouseJournal) Recent(ctx context.Context, limit int) ([]models.JournalEntry, error) {
	if limit <= 0 || limit > maxJournalPage {
		limit = maxJournalPage
	}

	query := `
		SELECT id, request_id, operation, entity_type, entity_id, policy, outcome, error, created_at
		FROM operation_journal
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := j.db.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("list journal entries", err)
	}
	defer func() { _ = rows.Close() }()

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
