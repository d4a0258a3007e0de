package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/IliyaBaranov/agora/internal/models"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 500

	dependencyPingTimeout = 2 * time.Second
)

// StateResponse is the whole mirrored session
type StateResponse struct {
	SignedIn bool             `json:"signedIn"`
	State    *models.Snapshot `json:"state"`
}

// handleGetState handles GET /api/state
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StateResponse{
		SignedIn: s.store.SignedIn(),
		State:    s.store.Snapshot(),
	})
}

// handleGetStatus handles GET /api/status - background refresh and backend health
func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"signedIn": s.store.SignedIn(),
	}
	if s.refresher != nil {
		status["refresh"] = s.refresher.GetStatus()
	}
	if s.backend != nil {
		status["backend"] = s.backend.BreakerStats()
	}
	if len(s.deps) > 0 {
		status["dependencies"] = s.pingDependencies(r.Context())
	}
	respondJSON(w, http.StatusOK, status)
}

// pingDependencies maps each side store to "ok" or its ping error
func (s *Server) pingDependencies(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, dependencyPingTimeout)
	defer cancel()

	out := make(map[string]string, len(s.deps))
	for _, d := range s.deps {
		if err := d.pinger.Ping(ctx); err != nil {
			s.logger.WithError(err).WithField("dependency", d.name).Warn("Dependency ping failed")
			out[d.name] = err.Error()
			continue
		}
		out[d.name] = "ok"
	}
	return out
}

// handleRefresh handles POST /api/refresh - an immediate full re-fetch
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Bootstrap(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	s.handleGetState(w, r)
}

// handleLogin handles POST /api/session/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidInput(w, "Invalid request body")
		return
	}

	if err := s.store.Login(r.Context(), req.Email, req.Password); err != nil {
		respondServiceError(w, err)
		return
	}
	s.handleGetState(w, r)
}

// handleRegister handles POST /api/session/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidInput(w, "Invalid request body")
		return
	}

	if err := s.store.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, StateResponse{
		SignedIn: s.store.SignedIn(),
		State:    s.store.Snapshot(),
	})
}

// handleLogout handles POST /api/session/logout. Local state is cleared even
// when the backend call fails, so the response is always 204.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Logout(r.Context()); err != nil {
		s.logger.WithError(err).Warn("Backend logout failed")
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTopUp handles POST /api/credits/topup
func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidInput(w, "Invalid request body")
		return
	}

	if err := s.store.TopUpCredits(r.Context(), req.Amount); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.store.Snapshot().CurrentUser)
}

// handleGetJournal handles GET /api/journal?limit=N
func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	limit := defaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondInvalidInput(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxJournalLimit {
		limit = maxJournalLimit
	}

	entries, err := s.store.Journal(r.Context(), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []models.JournalEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
