package web

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/regdesk/internal/core"
	"github.com/JonMunkholm/regdesk/internal/mailer"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "json"
	}

	export, err := s.service.ExportData(r.Context(), q.Get("search"))
	if err != nil {
		s.respondError(w, r, err, "Failed to export data")
		return
	}

	if format == "csv" {
		body, err := export.CSV()
		if err != nil {
			s.respondError(w, r, err, "Failed to export data")
			return
		}

		filename := "registrations_" + time.Now().UTC().Format("2006-01-02") + ".csv"
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename=`+filename)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
		return
	}

	s.respondJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		core.Export
	}{Success: true, Export: export})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.GetStats(r.Context())
	if err != nil {
		s.respondError(w, r, err, "Failed to fetch statistics")
		return
	}
	s.respondSuccess(w, http.StatusOK, "", stats)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	s.respondSuccess(w, http.StatusOK, "", mailer.Templates())
}

// handleFileDownload redirects to a short-lived signed URL for a stored
// attachment, keeping the bucket itself private. The path carries either a
// bare object id or a full (url-encoded) stored URL; when signing fails for a
// URL the client is redirected to it directly.
func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/admin/file/")
	if raw == "" {
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "No file path provided"})
		return
	}

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}

	objectID := decoded
	if strings.Contains(decoded, "://") {
		objectID = s.files.ObjectIDFromURL(decoded)
		if objectID == "" {
			s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Invalid file URL - could not extract object id"})
			return
		}
	}

	signed, err := s.files.SignedURL(r.Context(), objectID, s.cfg.Files.SignedURLTTL)
	if err != nil {
		if strings.Contains(decoded, "://") {
			http.Redirect(w, r, decoded, http.StatusTemporaryRedirect)
			return
		}
		s.respondError(w, r, err, "Failed to resolve file")
		return
	}

	http.Redirect(w, r, signed, http.StatusTemporaryRedirect)
}
