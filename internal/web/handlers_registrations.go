package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/regdesk/internal/core"
)

// listResponse extends the envelope with pagination alongside the page of
// records.
type listResponse struct {
	Success    bool                `json:"success"`
	Data       []core.Registration `json:"data"`
	Pagination core.Pagination     `json:"pagination"`
}

func (s *Server) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := intQuery(q.Get("page"), 1)
	limit := intQuery(q.Get("limit"), 50)

	filters := core.Filters{
		Search:    q.Get("search"),
		Committee: q.Get("committee"),
		Position:  q.Get("position"),
		Year:      q.Get("year"),
		Status:    q.Get("status"),
	}

	items, pagination, err := s.service.List(r.Context(), filters, page, limit)
	if err != nil {
		s.respondError(w, r, err, "Failed to fetch registrations")
		return
	}

	s.respondJSON(w, http.StatusOK, listResponse{
		Success:    true,
		Data:       items,
		Pagination: pagination,
	})
}

func (s *Server) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := s.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, "Failed to fetch registration")
		return
	}
	s.respondSuccess(w, http.StatusOK, "", reg)
}

func (s *Server) handleUpdateRegistration(w http.ResponseWriter, r *http.Request) {
	var input map[string]any
	if err := decodeJSON(r, &input); err != nil {
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Invalid JSON body"})
		return
	}

	if err := s.service.Update(r.Context(), chi.URLParam(r, "id"), input); err != nil {
		s.respondError(w, r, err, "Failed to update registration")
		return
	}

	s.respondSuccess(w, http.StatusOK, "Registration updated successfully", nil)
}

func (s *Server) handleDeleteRegistration(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err, "Failed to delete registration")
		return
	}

	s.respondSuccess(w, http.StatusOK, "Registration deleted successfully", nil)
}

type bulkActionRequest struct {
	Action          string         `json:"action"`
	RegistrationIDs []string       `json:"registrationIds"`
	Data            map[string]any `json:"data"`
}

type bulkActionResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Results core.BulkOutcome `json:"results"`
}

func (s *Server) handleBulkAction(w http.ResponseWriter, r *http.Request) {
	var req bulkActionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Invalid JSON body"})
		return
	}

	if req.Action == "" || req.RegistrationIDs == nil {
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Invalid bulk action request"})
		return
	}

	outcome := s.service.BulkAction(r.Context(), req.Action, req.RegistrationIDs, req.Data)

	s.respondJSON(w, http.StatusOK, bulkActionResponse{
		Success: true,
		Message: "Bulk " + req.Action + " completed",
		Results: outcome,
	})
}

// intQuery parses a query parameter, falling back on absent or unparsable
// values.
func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
