package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IliyaBaranov/agora/internal/adapter"
	"github.com/IliyaBaranov/agora/internal/errors"
	"github.com/IliyaBaranov/agora/internal/logging"
	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/storage"
	"github.com/IliyaBaranov/agora/internal/store"
	"github.com/IliyaBaranov/agora/internal/types"
)

// stubBackend answers every backend call from memory
type stubBackend struct {
	mu       sync.Mutex
	snapshot *models.Snapshot
	fail     map[string]error
	password string
}

func (b *stubBackend) err(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fail[name]
}

func (b *stubBackend) Me(context.Context) (*models.Snapshot, error) {
	if err := b.err("me"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot == nil {
		return &models.Snapshot{}, nil
	}
	return b.snapshot.Clone(), nil
}

func (b *stubBackend) Login(_ context.Context, _, password string) error {
	if password != b.password {
		return errors.NewAPIError("auth_login", http.StatusUnauthorized, "invalid credentials")
	}
	return b.err("login")
}

func (b *stubBackend) Register(context.Context, string, string, string) error {
	return b.err("register")
}
func (b *stubBackend) Logout(context.Context) error { return b.err("logout") }

func (b *stubBackend) CreateMarketplace(_ context.Context, name, slug, city string) (*models.Marketplace, error) {
	if err := b.err("create_marketplace"); err != nil {
		return nil, err
	}
	return &models.Marketplace{ID: "m2", Name: name, Slug: slug, City: city}, nil
}

func (b *stubBackend) AddFavorite(context.Context, string) error    { return b.err("add_favorite") }
func (b *stubBackend) RemoveFavorite(context.Context, string) error { return b.err("remove_favorite") }
func (b *stubBackend) SetRole(context.Context, string, string, types.UserRole) error {
	return b.err("set_role")
}
func (b *stubBackend) SetApproval(context.Context, string, string, types.ApprovalStatus) error {
	return b.err("set_approval")
}
func (b *stubBackend) RegisterProducer(context.Context, string, string) error {
	return b.err("register_producer")
}
func (b *stubBackend) UpdateProducerStatus(context.Context, string, types.ProducerStatus) error {
	return b.err("producer_status")
}

func (b *stubBackend) CreateJob(context.Context, adapter.JobInput) (string, error) {
	if err := b.err("create_job"); err != nil {
		return "", err
	}
	return "j9", nil
}

func (b *stubBackend) TakeJob(context.Context, string) error     { return b.err("take_job") }
func (b *stubBackend) CompleteJob(context.Context, string) error { return b.err("complete_job") }
func (b *stubBackend) PayJob(context.Context, string) error      { return b.err("pay_job") }
func (b *stubBackend) AutoJoin(context.Context, string) (bool, error) {
	return false, b.err("auto_join")
}

func fixture() *models.Snapshot {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ann := models.User{ID: "u1", Name: "Ann", Email: "ann@example.com", Credits: 100, CreatedAt: at}
	bob := models.User{ID: "u2", Name: "Bob", Email: "bob@example.com", Credits: 5, CreatedAt: at}
	producer := "u2"
	pending := types.ApprovalPending
	return &models.Snapshot{
		CurrentUser:  &ann,
		AllUsers:     []models.User{ann, bob},
		Marketplaces: []models.Marketplace{{ID: "m1", Name: "Plumbers", Slug: "plumbers", City: "Tallinn", OwnerID: "u1", CreatedAt: at}},
		MarketplaceUsers: []models.MarketplaceUser{
			{UserID: "u1", MarketplaceID: "m1", Role: types.RoleAdmin},
			{UserID: "u2", MarketplaceID: "m1", Role: types.RoleCustomer, ApprovalStatus: &pending},
		},
		Jobs: []models.Job{
			{ID: "j1", MarketplaceID: "m1", CustomerID: "u1", Title: "Fix sink", Price: 40, Status: types.JobOpen, CreatedAt: at},
			{ID: "j2", MarketplaceID: "m1", CustomerID: "u1", ProducerID: &producer, Title: "Fix tap", Price: 30, Status: types.JobTaken, CreatedAt: at},
		},
		Favorites: []models.FavoriteMarketplace{},
		FetchedAt: at,
	}
}

// newTestServer builds a facade over a real store. A nil snapshot starts signed out.
func newTestServer(t *testing.T, snap *models.Snapshot, opts ...ServerOption) (*Server, *stubBackend, *store.Store) {
	t.Helper()
	backend := &stubBackend{snapshot: snap, fail: map[string]error{}, password: "secret"}
	st := store.New(backend,
		store.WithJournal(storage.NewMemoryJournal(50)),
		store.WithLogger(logging.NewNopLogger()),
	)
	require.NoError(t, st.Bootstrap(context.Background()))

	cfg := DefaultServerConfig("127.0.0.1", "0")
	cfg.RequestsPerSec = 1000
	cfg.Burst = 1000
	opts = append([]ServerOption{WithServerLogger(logging.NewNopLogger())}, opts...)
	return NewServer(cfg, st, opts...), backend, st
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, http.NoBody)
}

func newJSONRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}
