package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/IliyaBaranov/agora/internal/models"
	"github.com/IliyaBaranov/agora/internal/types"
)

// MarketplaceView is a marketplace page as the signed-in user sees it
type MarketplaceView struct {
	Marketplace      models.Marketplace    `json:"marketplace"`
	Members          []models.MemberView   `json:"members"`
	Jobs             []models.Job          `json:"jobs"`
	Role             *types.UserRole       `json:"role,omitempty"`
	EffectiveRole    *types.UserRole       `json:"effectiveRole,omitempty"`
	ProducerStatus   *types.ProducerStatus `json:"producerStatus,omitempty"`
	ProducerEarnings int64                 `json:"producerEarnings"`
	IsFavorite       bool                  `json:"isFavorite"`
}

// handleGetMarketplace handles GET /api/marketplaces/{slug}
func (s *Server) handleGetMarketplace(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	m, ok := s.store.MarketplaceBySlug(slug)
	if !ok {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Marketplace not found", map[string]interface{}{"slug": slug})
		return
	}

	respondJSON(w, http.StatusOK, MarketplaceView{
		Marketplace:      m,
		Members:          s.store.MembersOf(m.ID),
		Jobs:             s.store.JobsIn(m.ID),
		Role:             s.store.RoleIn(m.ID),
		EffectiveRole:    s.store.EffectiveRole(m.ID),
		ProducerStatus:   s.store.ProducerStatusIn(m.ID),
		ProducerEarnings: s.store.ProducerEarnings(m.ID),
		IsFavorite:       s.store.IsFavorite(m.ID),
	})
}

// handleCreateMarketplace handles POST /api/marketplaces
func (s *Server) handleCreateMarketplace(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
		City string `json:"city"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidInput(w, "Invalid request body")
		return
	}

	m, err := s.store.CreateMarketplace(r.Context(), req.Name, req.Slug, req.City)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// handleAddFavorite handles POST /api/marketplaces/{id}/favorite
func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.AddFavorite(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"marketplaceId": id, "isFavorite": s.store.IsFavorite(id)})
}

// handleRemoveFavorite handles DELETE /api/marketplaces/{id}/favorite
func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.RemoveFavorite(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"marketplaceId": id, "isFavorite": s.store.IsFavorite(id)})
}

// handleAutoJoin handles POST /api/marketplaces/{id}/join
func (s *Server) handleAutoJoin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	created, err := s.store.AutoJoin(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"marketplaceId": id, "created": created, "role": s.store.RoleIn(id)})
}

// handleSetLocalRole handles POST /api/marketplaces/{id}/local-role
func (s *Server) handleSetLocalRole(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Role types.UserRole `json:"role"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidInput(w, "Invalid request body")
		return
	}

	if err := s.store.SetLocalRole(r.Context(), id, req.Role); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"marketplaceId": id, "effectiveRole": s.store.EffectiveRole(id)})
}

// handleUpdateProducerStatus handles POST /api/marketplaces/{id}/status
func (s *Server) handleUpdateProducerStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Status types.ProducerStatus `json:"status"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidInput(w, "Invalid request body")
		return
	}

	if err := s.store.UpdateProducerStatus(r.Context(), id, req.Status); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"marketplaceId": id, "status": s.store.ProducerStatusIn(id)})
}

// handleListProducers handles GET /api/marketplaces/{id}/producers?approval=PENDING
func (s *Server) handleListProducers(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	approval := types.ApprovalStatus(r.URL.Query().Get("approval"))
	if approval == "" {
		approval = types.ApprovalPending
	}
	if !approval.Valid() {
		respondInvalidInput(w, "approval must be PENDING, APPROVED or REJECTED")
		return
	}
	respondJSON(w, http.StatusOK, s.store.ProducersByApproval(id, approval))
}

// handleRegisterProducer handles POST /api/marketplaces/{id}/producers
func (s *Server) handleRegisterProducer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Description string `json:"description"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidInput(w, "Invalid request body")
		return
	}

	if err := s.store.RegisterAsProducer(r.Context(), id, req.Description); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]interface{}{"marketplaceId": id, "approvalStatus": types.ApprovalPending})
}

// handleApproveProducer handles POST /api/marketplaces/{id}/producers/{userId}/approve
func (s *Server) handleApproveProducer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.store.ApproveProducer(r.Context(), vars["id"], vars["userId"]); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRejectProducer handles POST /api/marketplaces/{id}/producers/{userId}/reject
func (s *Server) handleRejectProducer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.store.RejectProducer(r.Context(), vars["id"], vars["userId"]); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetRole handles POST /api/marketplaces/{id}/members/{userId}/role
func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		Role types.UserRole `json:"role"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidInput(w, "Invalid request body")
		return
	}

	if err := s.store.SetAdminRole(r.Context(), vars["id"], vars["userId"], req.Role); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
