package web

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/JonMunkholm/regdesk/internal/core"
)

// submissionFileSlots are the multipart form fields that carry attachments.
var submissionFileSlots = []string{core.FileIDCard, core.FileMUNCertificates, core.FileChairingResume}

// handleSubmit accepts a registration as either a multipart form with PDF
// attachments or a JSON body with inline base64 files.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		s.handleSubmitMultipart(w, r)
		return
	}
	s.handleSubmitJSON(w, r)
}

func (s *Server) handleSubmitMultipart(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize*int64(len(submissionFileSlots))+1<<20)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "File upload error", Error: err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	input := make(map[string]any, len(r.MultipartForm.Value))
	for field, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			input[field] = values[0]
		}
	}

	uploads := make(map[string]core.Upload)
	for _, slot := range submissionFileSlots {
		headers := r.MultipartForm.File[slot]
		if len(headers) == 0 {
			continue
		}
		up, err := readUpload(headers[0], maxSize)
		if err != nil {
			s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: err.Error()})
			return
		}
		uploads[slot] = up
	}

	result, err := s.service.Create(r.Context(), input, uploads)
	if err != nil {
		s.respondError(w, r, err, "Failed to submit registration")
		return
	}

	s.respondSuccess(w, http.StatusCreated, "Application submitted successfully!", result)
}

func (s *Server) handleSubmitJSON(w http.ResponseWriter, r *http.Request) {
	var input map[string]any
	if err := decodeJSON(r, &input); err != nil {
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Invalid JSON body"})
		return
	}

	files, err := decodeInlineFiles(input)
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: err.Error()})
		return
	}
	delete(input, "files")

	result, err := s.service.CreateJSON(r.Context(), input, files)
	if err != nil {
		s.respondError(w, r, err, "Failed to submit registration")
		return
	}

	s.respondSuccess(w, http.StatusCreated, "Registration submitted successfully", result)
}

// readUpload pulls one multipart file into memory, enforcing the PDF-only
// rule and the per-file size limit.
func readUpload(header *multipart.FileHeader, maxSize int64) (core.Upload, error) {
	if header.Size > maxSize {
		return core.Upload{}, fmt.Errorf("%s exceeds the %dMB file size limit", header.Filename, maxSize/(1<<20))
	}

	contentType := header.Header.Get("Content-Type")
	if contentType != "application/pdf" && !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		return core.Upload{}, errors.New("Only PDF files are allowed")
	}

	f, err := header.Open()
	if err != nil {
		return core.Upload{}, fmt.Errorf("reading %s: %w", header.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return core.Upload{}, fmt.Errorf("reading %s: %w", header.Filename, err)
	}
	if int64(len(data)) > maxSize {
		return core.Upload{}, fmt.Errorf("%s exceeds the %dMB file size limit", header.Filename, maxSize/(1<<20))
	}

	return core.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Content:     data,
	}, nil
}

// decodeInlineFiles extracts the legacy JSON attachment map: each entry is
// {name, type, data} with base64 content.
func decodeInlineFiles(input map[string]any) (map[string]core.Upload, error) {
	raw, ok := input["files"].(map[string]any)
	if !ok {
		return nil, nil
	}

	files := make(map[string]core.Upload, len(raw))
	for field, v := range raw {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		encoded, _ := entry["data"].(string)
		if encoded == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 content for %s", field)
		}

		name, _ := entry["name"].(string)
		if name = strings.TrimSpace(name); name == "" {
			name = "file"
		}
		contentType, _ := entry["type"].(string)

		files[field] = core.Upload{Filename: name, ContentType: contentType, Content: data}
	}
	return files, nil
}

// handleValidationRules serves the static form contract consumed by the
// public registration form.
func (s *Server) handleValidationRules(w http.ResponseWriter, r *http.Request) {
	rules := map[string]any{
		"requiredFields": []string{
			"name", "email", "phone", "college", "department", "year",
			"munsParticipated", "munsWithAwards", "organizingExperience", "munsChaired",
			"committees", "positions", "idCard",
		},
		"fileUpload": map[string]any{
			"maxSize": map[string]string{
				"idCard":          "2MB",
				"munCertificates": "2MB",
				"chairingResume":  "3MB",
			},
			"allowedTypes": []string{"application/pdf"},
			"required":     []string{core.FileIDCard},
			"optional":     []string{core.FileMUNCertificates, core.FileChairingResume},
		},
		"committees":  []string{"UNSC", "UNODC", "LOK SABHA", "CCC", "IPC", "DISEC"},
		"positions":   []string{"Chairperson", "Vice-Chairperson", "Director"},
		"yearOptions": []string{"1", "2", "3", "4", "5"},
	}

	s.respondSuccess(w, http.StatusOK, "", rules)
}
