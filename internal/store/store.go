// Package store holds the client-side mirror of marketplace state and the
// operations that keep it in step with the backend.
//
// Each mutating operation follows one of three policies, recorded in the journal
// with every call:
//
//	confirm-first  the local change is applied only after the backend accepts it
//	optimistic     the local change is applied first and reverted if the backend refuses
//	local-only     the backend is never called
//
// The store never holds its lock across a network call.
package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/IliyaBaranov/agora/internal/adapter"
	"github.com/IliyaBaranov/agora/internal/logging"
	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/storage"
	"github.com/IliyaBaranov/agora/internal/types"
)

// Backend is the remote marketplace API as the store uses it
type Backend interface {
	Me(ctx context.Context) (*models.Snapshot, error)
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, name, email, password string) error
	Logout(ctx context.Context) error
	CreateMarketplace(ctx context.Context, name, slug, city string) (*models.Marketplace, error)
	AddFavorite(ctx context.Context, marketplaceID string) error
	RemoveFavorite(ctx context.Context, marketplaceID string) error
	SetRole(ctx context.Context, marketplaceID, userID string, role types.UserRole) error
	SetApproval(ctx context.Context, marketplaceID, userID string, status types.ApprovalStatus) error
	RegisterProducer(ctx context.Context, marketplaceID, description string) error
	UpdateProducerStatus(ctx context.Context, marketplaceID string, status types.ProducerStatus) error
	CreateJob(ctx context.Context, in adapter.JobInput) (string, error)
	TakeJob(ctx context.Context, jobID string) error
	CompleteJob(ctx context.Context, jobID string) error
	PayJob(ctx context.Context, jobID string) error
	AutoJoin(ctx context.Context, marketplaceID string) (bool, error)
}

// SnapshotCache persists the last bootstrap for warm starts
type SnapshotCache interface {
	Save(ctx context.Context, snap *models.Snapshot) error
	LoadLast(ctx context.Context) (*models.Snapshot, bool, error)
	Drop(ctx context.Context, user *models.User) error
}

// Option configures a Store
type Option func(*Store)

// WithJournal records every mutating operation in j
func WithJournal(j storage.Journal) Option {
	return func(s *Store) { s.journal = j }
}

// WithSnapshotCache enables warm starts from c
func WithSnapshotCache(c SnapshotCache) Option {
	return func(s *Store) { s.snapshots = c }
}

// WithLogger sets the diagnostic logger
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the DomainStateStore. The zero value is not usable; call New.
type Store struct {
	backend   Backend
	journal   storage.Journal
	snapshots SnapshotCache
	logger    *logging.Logger
	now       func() time.Time

	mu           sync.RWMutex
	currentUser  *models.User
	users        []models.User
	marketplaces []models.Marketplace
	memberships  []models.MarketplaceUser
	jobs         []models.Job
	favorites    []models.FavoriteMarketplace
	// localRoles is the non-authoritative per-marketplace role override.
	// It never feeds a backend call.
	localRoles map[string]types.UserRole
	fetchedAt  time.Time

	// seq numbers bootstrap requests; applied is the newest one reflected in state.
	// Any full replace or clear advances applied.
	seq     uint64
	applied uint64

	// provisionalSeq suffixes local job ids so same-millisecond jobs stay distinct
	provisionalSeq atomic.Uint64
}

// New creates a store over backend
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		journal:    storage.NopJournal{},
		logger:     logging.GetGlobalLogger(),
		now:        time.Now,
		localRoles: map[string]types.UserRole{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("store")
	s.resetLocked()
	return s
}

// resetLocked empties every collection. Caller holds mu.
func (s *Store) resetLocked() {
	s.currentUser = nil
	s.users = []models.User{}
	s.marketplaces = []models.Marketplace{}
	s.memberships = []models.MarketplaceUser{}
	s.jobs = []models.Job{}
	s.favorites = []models.FavoriteMarketplace{}
	s.localRoles = map[string]types.UserRole{}
	s.fetchedAt = time.Time{}
}

// replaceLocked installs snap as the whole state. Caller holds mu.
func (s *Store) replaceLocked(snap *models.Snapshot) {
	prevUser := ""
	if s.currentUser != nil {
		prevUser = s.currentUser.ID
	}
	roles := s.localRoles

	snap = snap.Clone()
	s.currentUser = snap.CurrentUser
	s.users = snap.AllUsers
	s.marketplaces = snap.Marketplaces
	s.memberships = snap.MarketplaceUsers
	s.jobs = snap.Jobs
	s.favorites = snap.Favorites
	s.fetchedAt = snap.FetchedAt

	// overrides belong to the session that set them
	if s.currentUser != nil && s.currentUser.ID == prevUser {
		s.localRoles = roles
	} else {
		s.localRoles = map[string]types.UserRole{}
	}
}

// snapshotLocked deep-copies the state. Caller holds mu for reading.
func (s *Store) snapshotLocked() *models.Snapshot {
	snap := &models.Snapshot{
		CurrentUser:      s.currentUser,
		AllUsers:         s.users,
		Marketplaces:     s.marketplaces,
		MarketplaceUsers: s.memberships,
		Jobs:             s.jobs,
		Favorites:        s.favorites,
		FetchedAt:        s.fetchedAt,
	}
	return snap.Clone()
}

// withRequestID makes sure ctx carries a correlation ID shared by the backend call and the journal
func withRequestID(ctx context.Context) context.Context {
	if adapter.RequestIDFromContext(ctx) != "" {
		return ctx
	}
	return adapter.WithRequestID(ctx, uuid.New().String())
}

// operation describes one journaled mutation
type operation struct {
	name       string
	entityType string
	entityID   string
	policy     types.UpdatePolicy
}

// record appends a journal entry. Journal failures are logged, never returned.
func (s *Store) record(ctx context.Context, op operation, outcome types.Outcome, cause error) {
	entry := &models.JournalEntry{
		ID:         uuid.New().String(),
		RequestID:  adapter.RequestIDFromContext(ctx),
		Operation:  op.name,
		EntityType: op.entityType,
		EntityID:   op.entityID,
		Policy:     op.policy,
		Outcome:    outcome,
		CreatedAt:  s.now().UTC(),
	}
	if cause != nil {
		msg := cause.Error()
		entry.Error = &msg
	}

	logger := s.logger.WithFields(map[string]interface{}{
		"operation": op.name,
		"entity":    op.entityType,
		"entityId":  op.entityID,
		"policy":    op.policy,
		"outcome":   outcome,
		"requestId": entry.RequestID,
	})
	if cause != nil {
		logger.WithError(cause).Warn("Operation did not reach the backend state")
	} else {
		logger.Debug("Operation recorded")
	}

	if err := s.journal.Append(ctx, entry); err != nil {
		s.logger.WithError(err).Warn("Failed to append journal entry")
	}
}

// Journal lists recent journal entries, newest first
func (s *Store) Journal(ctx context.Context, limit int) ([]models.JournalEntry, error) {
	return s.journal.Recent(ctx, limit)
}

func (s *Store) findMembershipLocked(userID, marketplaceID string) int {
	for i := range s.memberships {
		if s.memberships[i].Matches(userID, marketplaceID) {
			return i
		}
	}
	return -1
}

func (s *Store) findJobLocked(jobID string) int {
	for i := range s.jobs {
		if s.jobs[i].ID == jobID {
			return i
		}
	}
	return -1
}

func (s *Store) findFavoriteLocked(userID, marketplaceID string) int {
	for i, f := range s.favorites {
		if f.UserID == userID && f.MarketplaceID == marketplaceID {
			return i
		}
	}
	return -1
}

// currentUserID returns the signed-in user's ID, or "" when signed out
func (s *Store) currentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentUser == nil {
		return ""
	}
	return s.currentUser.ID
}

// adjustCreditsLocked adds delta to userID in both the user list and the current user
func (s *Store) adjustCreditsLocked(userID string, delta int64) {
	for i := range s.users {
		if s.users[i].ID == userID {
			s.users[i].Credits += delta
		}
	}
	if s.currentUser != nil && s.currentUser.ID == userID {
		s.currentUser.Credits += delta
	}
}

func int64Ptr(v int64) *int64 { return &v }
