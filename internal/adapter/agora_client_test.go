package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IliyaBaranov/agora/internal/config"
	"github.com/IliyaBaranov/agora/internal/errors"
	"github.com/IliyaBaranov/agora/internal/logging"
	"github.com/IliyaBaranov/agora/internal/types"
)

const sessionCookie = "PHPSESSID"

func newTestClient(t *testing.T, router *mux.Router, tweak func(*config.APIConfig)) *AgoraClient {
	t.Helper()
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	cfg := config.APIConfig{
		BaseURL:         server.URL,
		PathSuffix:      ".php",
		Timeout:         5 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: time.Minute,
		MeRetryAttempts: 3,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	client, err := NewAgoraClient(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	client.meRetry.InitialDelay = time.Millisecond
	client.meRetry.MaxDelay = 5 * time.Millisecond
	return client
}

func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewAgoraClient_RequiresBaseURL(t *testing.T) {
	_, err := NewAgoraClient(config.APIConfig{}, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestEndpointURL(t *testing.T) {
	c := &AgoraClient{baseURL: "http://backend", suffix: ".php"}
	assert.Equal(t, "http://backend/api/me.php", c.endpointURL(EndpointMe))
	assert.Equal(t, "http://backend/jobs_take.php", c.endpointURL(EndpointJobsTake))

	c.suffix = ""
	assert.Equal(t, "http://backend/api/jobs_pay", c.endpointURL(EndpointJobsPay))
}

func TestAgoraClient_LoginSharesSessionCookie(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/auth_login.php", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		if body["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad credentials"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "abc", Path: "/"})
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}).Methods(http.MethodPost)
	router.HandleFunc("/api/me.php", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(sessionCookie); err != nil || c.Value != "abc" {
			writeJSON(w, http.StatusOK, map[string]interface{}{"currentUser": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"currentUser": map[string]interface{}{"id": 1, "name": "Ann", "email": "ann@example.com", "credits": 10},
			"marketplaces": []map[string]interface{}{
				{"id": 2, "name": "Plumbers", "slug": "plumbers", "city": "Tallinn", "owner_id": 1},
			},
		})
	}).Methods(http.MethodGet)

	client := newTestClient(t, router, nil)
	ctx := context.Background()

	snap, err := client.Me(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap, "no session before login")

	err = client.Login(ctx, "ann@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAPI))
	assert.Contains(t, err.Error(), "bad credentials")

	require.NoError(t, client.Login(ctx, "ann@example.com", "secret"))

	snap, err = client.Me(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "1", snap.CurrentUser.ID)
	require.Len(t, snap.Marketplaces, 1)
	assert.Equal(t, "1", snap.Marketplaces[0].OwnerID)
}

func TestAgoraClient_MeUnauthorizedIsLoggedOut(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/me.php", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := newTestClient(t, router, nil)
	snap, err := client.Me(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, snap)
}

func TestAgoraClient_MeRetriesServerErrors(t *testing.T) {
	var calls int32
	router := mux.NewRouter()
	router.HandleFunc("/api/me.php", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"currentUser": map[string]interface{}{"id": 4}})
	})

	client := newTestClient(t, router, nil)
	var logs bytes.Buffer
	logger := logging.NewLogger(logging.LevelInfo, logging.FormatJSON)
	logger.SetOutput(&logs)
	client.logger = logger.WithComponent("agora_client")

	snap, err := client.Me(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "4", snap.CurrentUser.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	// retries log through the client's logger
	assert.Contains(t, logs.String(), "Operation succeeded after retry")
}

func TestAgoraClient_MutationsAreNotRetried(t *testing.T) {
	var calls int32
	router := mux.NewRouter()
	router.HandleFunc("/api/jobs_pay.php", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "busy"})
	})

	client := newTestClient(t, router, nil)
	err := client.PayJob(context.Background(), "8")
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAgoraClient_SendsNumericIdentifiers(t *testing.T) {
	got := make(chan map[string]interface{}, 4)
	router := mux.NewRouter()
	record := func(w http.ResponseWriter, r *http.Request) {
		got <- decodeBody(t, r)
		writeJSON(w, http.StatusOK, map[string]interface{}{})
	}
	router.HandleFunc("/jobs_take.php", record).Methods(http.MethodPost)
	router.HandleFunc("/api/favorites.php", record).Methods(http.MethodDelete)
	router.HandleFunc("/api/admin_set_role.php", record).Methods(http.MethodPost)

	client := newTestClient(t, router, nil)
	ctx := context.Background()

	require.NoError(t, client.TakeJob(ctx, "15"))
	assert.Equal(t, float64(15), (<-got)["jobId"])

	require.NoError(t, client.RemoveFavorite(ctx, "3"))
	assert.Equal(t, float64(3), (<-got)["marketplaceId"])

	require.NoError(t, client.SetApproval(ctx, "3", "9", types.ApprovalRejected))
	body := <-got
	assert.Equal(t, float64(9), body["userId"])
	assert.Equal(t, "REJECTED", body["status"])
	assert.NotContains(t, body, "role")

	require.NoError(t, client.TakeJob(ctx, "j1700000000000"))
	assert.Equal(t, "j1700000000000", (<-got)["jobId"])
}

func TestAgoraClient_ApplicationErrorsInBody(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/jobs_pay.php", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"error": "insufficient funds"})
	})
	router.HandleFunc("/api/producers.php", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": false})
	})
	router.HandleFunc("/api/producer_update_status.php", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": "1"})
	})
	router.HandleFunc("/api/jobs_complete.php", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"error": false})
	})

	client := newTestClient(t, router, nil)
	ctx := context.Background()

	err := client.PayJob(ctx, "1")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAPI))
	assert.False(t, errors.IsRetryable(err))

	err = client.RegisterProducer(ctx, "1", "5 years experience")
	assert.True(t, errors.IsCategory(err, errors.CategoryAPI))

	assert.NoError(t, client.UpdateProducerStatus(ctx, "1", types.ProducerOnline))
	assert.NoError(t, client.CompleteJob(ctx, "1"))
}

func TestAgoraClient_CreateMarketplaceAndJob(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/marketplaces.php", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": 31, "name": body["name"], "slug": body["slug"], "city": body["city"],
		})
	})
	router.HandleFunc("/api/jobs.php", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, float64(31), body["marketplaceId"])
		assert.Equal(t, float64(40), body["price"])
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": "77"})
	})
	router.HandleFunc("/api/marketplace_autojoin.php", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "created"})
	})

	client := newTestClient(t, router, nil)
	ctx := context.Background()

	m, err := client.CreateMarketplace(ctx, "Plumbers", "plumbers", "Tallinn")
	require.NoError(t, err)
	assert.Equal(t, "31", m.ID)
	assert.Equal(t, "plumbers", m.Slug)
	assert.Empty(t, m.OwnerID)

	id, err := client.CreateJob(ctx, JobInput{MarketplaceID: "31", Title: "Fix tap", Price: 40})
	require.NoError(t, err)
	assert.Equal(t, "77", id)

	created, err := client.AutoJoin(ctx, "31")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestAgoraClient_RequestIDPropagates(t *testing.T) {
	seen := make(chan string, 2)
	router := mux.NewRouter()
	router.HandleFunc("/api/logout.php", func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get(requestIDHeader)
		w.WriteHeader(http.StatusNoContent)
	})

	client := newTestClient(t, router, nil)

	require.NoError(t, client.Logout(WithRequestID(context.Background(), "req-1")))
	assert.Equal(t, "req-1", <-seen)

	require.NoError(t, client.Logout(context.Background()))
	assert.NotEmpty(t, <-seen)
}

func TestAgoraClient_BreakerOpensOnTransportFailures(t *testing.T) {
	var calls int32
	router := mux.NewRouter()
	router.HandleFunc("/api/favorites.php", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := newTestClient(t, router, func(cfg *config.APIConfig) {
		cfg.BreakerFailures = 2
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.Error(t, client.AddFavorite(ctx, "1"))
	}
	err := client.AddFavorite(ctx, "1")
	require.Error(t, err)
	catErr := errors.Categorize(err)
	assert.Equal(t, "PROVIDER_UNAVAILABLE", catErr.Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "open", string(client.BreakerStats().State))
}

func TestAgoraClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/favorites.php", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	})

	client := newTestClient(t, router, func(cfg *config.APIConfig) {
		cfg.BreakerFailures = 1
	})
	for i := 0; i < 3; i++ {
		err := client.AddFavorite(context.Background(), "1")
		assert.Equal(t, http.StatusForbidden, errors.Categorize(err).StatusCode)
	}
	assert.Equal(t, "closed", string(client.BreakerStats().State))
}
