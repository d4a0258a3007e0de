package storage

import (
	"context"
	"sync"

	"github.com/IliyaBaranov/agora/internal/models"
)

// Journal records mutating store operations and how they reconciled with the backend
type Journal interface {
	Append(ctx context.Context, entry *models.JournalEntry) error
	// Recent lists entries newest first
	Recent(ctx context.Context, limit int) ([]models.JournalEntry, error)
}

// MemoryJournal keeps the most recent entries in a bounded ring
type MemoryJournal struct {
	mu       sync.Mutex
	entries  []models.JournalEntry
	next     int
	full     bool
	capacity int
}

// NewMemoryJournal creates an in-memory journal holding up to capacity entries
func NewMemoryJournal(capacity int) *MemoryJournal {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryJournal{
		entries:  make([]models.JournalEntry, capacity),
		capacity: capacity,
	}
}

// Append implements Journal
func (j *MemoryJournal) Append(_ context.Context, entry *models.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries[j.next] = *entry
	j.next = (j.next + 1) % j.capacity
	if j.next == 0 {
		j.full = true
	}
	return nil
}

// Recent implements Journal
func (j *MemoryJournal) Recent(_ context.Context, limit int) ([]models.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	size := j.next
	if j.full {
		size = j.capacity
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]models.JournalEntry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (j.next - i + j.capacity) % j.capacity
		out = append(out, j.entries[idx])
	}
	return out, nil
}

// NopJournal discards every entry
type NopJournal struct{}

// Append implements Journal
func (NopJournal) Append(context.Context, *models.JournalEntry) error { return nil }

// Recent implements Journal
func (NopJournal) Recent(context.Context, int) ([]models.JournalEntry, error) { return nil, nil }
