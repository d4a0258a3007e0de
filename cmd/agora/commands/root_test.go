package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IliyaBaranov/agora/internal/models"
)

func fakeBackend(t *testing.T, signedIn bool) *httptest.Server {
	t.Helper()
	router := mux.NewRouter()
	router.HandleFunc("/api/me.php", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !signedIn {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"currentUser": nil})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"currentUser": map[string]interface{}{"id": 1, "name": "Ann", "email": "ann@example.com", "credits": 10},
			"allUsers": []map[string]interface{}{
				{"id": 1, "name": "Ann", "email": "ann@example.com", "credits": 10},
			},
			"marketplaces": []map[string]interface{}{
				{"id": 2, "name": "Plumbers", "slug": "plumbers", "city": "Tallinn", "owner_id": 1},
			},
			"jobs": []map[string]interface{}{
				{"id": 7, "marketplace_id": 2, "customer_id": 1, "title": "Fix sink", "price": 40, "status": "OPEN"},
			},
		})
	}).Methods(http.MethodGet)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--api", srv.URL, "--email", ""}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestMeCommand(t *testing.T) {
	out, err := run(t, fakeBackend(t, true), "me")
	require.NoError(t, err)

	var user models.User
	require.NoError(t, json.Unmarshal([]byte(out), &user))
	assert.Equal(t, "1", user.ID)
	assert.Equal(t, int64(10), user.Credits)
}

func TestMeCommand_SignedOut(t *testing.T) {
	_, err := run(t, fakeBackend(t, false), "me")
	assert.Error(t, err)
}

func TestMarketplacesShow(t *testing.T) {
	srv := fakeBackend(t, true)

	out, err := run(t, srv, "marketplaces", "show", "plumbers")
	require.NoError(t, err)

	var view marketplaceView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "2", view.Marketplace.ID)
	assert.Equal(t, 1, view.OpenJobsCount)

	_, err = run(t, srv, "mp", "show", "painters")
	assert.Error(t, err)
}

func TestJobsOpen(t *testing.T) {
	out, err := run(t, fakeBackend(t, true), "jobs", "open", "2")
	require.NoError(t, err)

	var jobs []models.Job
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "Fix sink", jobs[0].Title)
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"me"},
		{"marketplaces", "list"},
		{"marketplaces", "create"},
		{"jobs", "take"},
		{"jobs", "pay"},
		{"producer", "register"},
		{"producer", "status"},
		{"admin", "set-role"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
