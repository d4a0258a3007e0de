package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/IliyaBaranov/agora/internal/adapter"
)

// handleListJobs handles GET /api/marketplaces/{id}/jobs?filter=open|mine
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	switch filter := r.URL.Query().Get("filter"); filter {
	case "":
		respondJSON(w, http.StatusOK, s.store.JobsIn(id))
	case "open":
		respondJSON(w, http.StatusOK, s.store.OpenJobs(id))
	case "mine":
		respondJSON(w, http.StatusOK, s.store.CustomerJobs(id))
	default:
		respondInvalidInput(w, "filter must be 'open' or 'mine'")
	}
}

// handleCreateJob handles POST /api/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req adapter.JobInput
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidInput(w, "Invalid request body")
		return
	}

	job, err := s.store.CreateJob(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	status := http.StatusCreated
	if job.Provisional {
		// kept locally, the backend has not acknowledged it
		status = http.StatusAccepted
	}
	respondJSON(w, status, job)
}

// handleTakeJob handles POST /api/jobs/{id}/take
func (s *Server) handleTakeJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.TakeJob(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	s.respondJob(w, id)
}

// handleCompleteJob handles POST /api/jobs/{id}/complete
func (s *Server) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.CompleteJob(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	s.respondJob(w, id)
}

// handlePayJob handles POST /api/jobs/{id}/pay
func (s *Server) handlePayJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.store.PayForJob(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	s.respondJob(w, id)
}

func (s *Server) respondJob(w http.ResponseWriter, jobID string) {
	if j, ok := s.store.JobByID(jobID); ok {
		respondJSON(w, http.StatusOK, j)
		return
	}
	respondError(w, http.StatusNotFound, ErrCodeNotFound, "Job not found", map[string]interface{}{"id": jobID})
}
