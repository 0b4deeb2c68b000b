package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/regdesk/internal/auth"
	"github.com/JonMunkholm/regdesk/internal/core"
	"github.com/JonMunkholm/regdesk/internal/logging"
	"github.com/JonMunkholm/regdesk/internal/otp"
)

// decodeJSON decodes a request body into dst, capping the body at 10MB to
// match the inline-attachment allowance of the legacy JSON submit path.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 10<<20))
	return dec.Decode(dst)
}

// envelope is the uniform response shape: success plus an optional message,
// payload, and error detail. Handlers that need extra top-level keys embed
// it in a wider struct.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are gone; nothing to do but record it.
		slog.Error("encoding response failed", "error", err)
	}
}

func (s *Server) respondSuccess(w http.ResponseWriter, status int, message string, data any) {
	s.respondJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// respondError maps a domain error to its status and envelope. Upstream
// failure detail is exposed only outside production.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, message string) {
	logger := logging.FromContext(r.Context())

	if verrs, ok := core.AsValidationErrors(err); ok {
		logger.Info("request rejected",
			"path", r.URL.Path,
			"errors", verrs.Messages(),
			"request_id", middleware.GetReqID(r.Context()),
		)
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: verrs.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
		message = "Registration not found"
	case errors.Is(err, otp.ErrNotAuthorized):
		status = http.StatusForbidden
		message = "Access denied. Email not authorized."
	case errors.Is(err, otp.ErrCodeNotFound):
		status = http.StatusBadRequest
		message = "OTP not found or expired"
	case errors.Is(err, otp.ErrCodeMismatch):
		status = http.StatusBadRequest
		message = "Invalid OTP"
	case errors.Is(err, auth.ErrInvalidToken):
		status = http.StatusUnauthorized
		message = "Invalid session token"
	case errors.Is(err, core.ErrNoRecipients):
		status = http.StatusBadRequest
		message = "No valid recipients found"
	}

	logger.Error("request failed",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err,
		"request_id", middleware.GetReqID(r.Context()),
	)

	resp := envelope{Success: false, Message: message}
	if status == http.StatusInternalServerError && !s.cfg.IsProduction() {
		resp.Error = err.Error()
	}
	s.respondJSON(w, status, resp)
}
