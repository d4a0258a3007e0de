package store

import (
	"context"
	"sync"
	"time"

	"github.com/IliyaBaranov/agora/internal/adapter"
	"github.com/IliyaBaranov/agora/internal/errors"
	"github.com/IliyaBaranov/agora/internal/logging"
	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/storage"
	"github.com/IliyaBaranov/agora/internal/types"
)

var errBackendDown = errors.NewProviderError("test", context.DeadlineExceeded)

// fakeBackend serves a fixed snapshot and records every call
type fakeBackend struct {
	mu       sync.Mutex
	snapshot *models.Snapshot
	fail     map[string]error
	calls    map[string]int
	// meHook runs inside Me before the snapshot is returned
	meHook func(call int)

	marketplaceID string
	jobID         string
	autoJoined    bool
	lastJob       adapter.JobInput
	lastApproval  types.ApprovalStatus

	// marketplaceOwner is reported as the owner of created marketplaces when set
	marketplaceOwner string
}

func newFakeBackend(snap *models.Snapshot) *fakeBackend {
	return &fakeBackend{
		snapshot:      snap,
		fail:          map[string]error{},
		calls:         map[string]int{},
		marketplaceID: "m-new",
		jobID:         "j-new",
	}
}

func (f *fakeBackend) call(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.fail[name]
}

func (f *fakeBackend) failOn(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[name] = err
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) setSnapshot(snap *models.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = snap
}

func (f *fakeBackend) Me(context.Context) (*models.Snapshot, error) {
	if err := f.call("me"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	n := f.calls["me"]
	hook := f.meHook
	snap := f.snapshot.Clone()
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if snap == nil {
		snap = &models.Snapshot{}
	}
	return snap, nil
}

func (f *fakeBackend) Login(context.Context, string, string) error { return f.call("login") }

func (f *fakeBackend) Register(context.Context, string, string, string) error {
	return f.call("register")
}

func (f *fakeBackend) Logout(context.Context) error { return f.call("logout") }

func (f *fakeBackend) CreateMarketplace(_ context.Context, name, slug, city string) (*models.Marketplace, error) {
	if err := f.call("create_marketplace"); err != nil {
		return nil, err
	}
	return &models.Marketplace{ID: f.marketplaceID, Name: name, Slug: slug, City: city, OwnerID: f.marketplaceOwner, CreatedAt: time.Now().UTC()}, nil
}

func (f *fakeBackend) AddFavorite(context.Context, string) error    { return f.call("add_favorite") }
func (f *fakeBackend) RemoveFavorite(context.Context, string) error { return f.call("remove_favorite") }

func (f *fakeBackend) SetRole(context.Context, string, string, types.UserRole) error {
	return f.call("set_role")
}

func (f *fakeBackend) SetApproval(_ context.Context, _, _ string, status types.ApprovalStatus) error {
	f.mu.Lock()
	f.lastApproval = status
	f.mu.Unlock()
	return f.call("set_approval")
}

func (f *fakeBackend) RegisterProducer(context.Context, string, string) error {
	return f.call("register_producer")
}

func (f *fakeBackend) UpdateProducerStatus(context.Context, string, types.ProducerStatus) error {
	return f.call("producer_status")
}

func (f *fakeBackend) CreateJob(_ context.Context, in adapter.JobInput) (string, error) {
	f.mu.Lock()
	f.lastJob = in
	f.mu.Unlock()
	if err := f.call("create_job"); err != nil {
		return "", err
	}
	return f.jobID, nil
}

func (f *fakeBackend) TakeJob(context.Context, string) error     { return f.call("take_job") }
func (f *fakeBackend) CompleteJob(context.Context, string) error { return f.call("complete_job") }
func (f *fakeBackend) PayJob(context.Context, string) error      { return f.call("pay_job") }

func (f *fakeBackend) AutoJoin(context.Context, string) (bool, error) {
	if err := f.call("auto_join"); err != nil {
		return false, err
	}
	return f.autoJoined, nil
}

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func producerStatusPtr(s types.ProducerStatus) *types.ProducerStatus { return &s }

func approvalPtr(a types.ApprovalStatus) *types.ApprovalStatus { return &a }

// testSnapshot is a small marketplace: customer u1 (100 credits), producer u2
// and an admin u3, one open and one taken job.
func testSnapshot() *models.Snapshot {
	u1 := models.User{ID: "u1", Name: "Ann", Email: "ann@example.com", Credits: 100, CreatedAt: testEpoch}
	return &models.Snapshot{
		CurrentUser: &u1,
		AllUsers: []models.User{
			u1,
			{ID: "u2", Name: "Bob", Email: "bob@example.com", Credits: 10, CreatedAt: testEpoch},
			{ID: "u3", Name: "Cat", Email: "cat@example.com", Credits: 0, CreatedAt: testEpoch},
		},
		Marketplaces: []models.Marketplace{
			{ID: "m1", Name: "Plumbers", Slug: "plumbers", City: "Tallinn", OwnerID: "u3", CreatedAt: testEpoch},
		},
		MarketplaceUsers: []models.MarketplaceUser{
			{UserID: "u1", MarketplaceID: "m1", Role: types.RoleCustomer},
			{UserID: "u2", MarketplaceID: "m1", Role: types.RoleProducer,
				Status: producerStatusPtr(types.ProducerOnline), ApprovalStatus: approvalPtr(types.ApprovalApproved)},
			{UserID: "u3", MarketplaceID: "m1", Role: types.RoleAdmin},
			{UserID: "u4", MarketplaceID: "m1", Role: types.RoleCustomer,
				ApprovalStatus: approvalPtr(types.ApprovalPending)},
		},
		Jobs: []models.Job{
			{ID: "j1", MarketplaceID: "m1", CustomerID: "u1", Title: "Fix sink", Price: 40, Status: types.JobOpen, CreatedAt: testEpoch},
			{ID: "j2", MarketplaceID: "m1", CustomerID: "u1", ProducerID: strPtr("u2"), Title: "Fix tap", Price: 30,
				Status: types.JobTaken, CreatedAt: testEpoch},
		},
		Favorites: []models.FavoriteMarketplace{},
		FetchedAt: testEpoch,
	}
}

// newTestStore builds a bootstrapped store over a fake backend
func newTestStore(t testingT, snap *models.Snapshot) (*Store, *fakeBackend, *storage.MemoryJournal) {
	backend := newFakeBackend(snap)
	journal := storage.NewMemoryJournal(100)
	s := New(backend,
		WithJournal(journal),
		WithLogger(logging.NewNopLogger()),
		WithClock(func() time.Time { return testEpoch }),
	)
	if snap != nil {
		if err := s.Bootstrap(context.Background()); err != nil {
			t.Fatalf("bootstrap: %v", err)
		}
	}
	return s, backend, journal
}

type testingT interface {
	Fatalf(format string, args ...interface{})
}

func lastEntry(t testingT, j *storage.MemoryJournal) models.JournalEntry {
	entries, _ := j.Recent(context.Background(), 1)
	if len(entries) == 0 {
		t.Fatalf("journal is empty")
		return models.JournalEntry{}
	}
	return entries[0]
}
