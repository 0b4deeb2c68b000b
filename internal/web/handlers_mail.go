package web

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/JonMunkholm/regdesk/internal/core"
	"github.com/JonMunkholm/regdesk/internal/mailer"
)

// mailAttachmentTypes lists the content types accepted on outgoing mail.
var mailAttachmentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"text/plain": true,
}

type sendMailResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Results core.MailResult `json:"results"`
}

// handleSendMail dispatches a campaign. The body is JSON, or multipart when
// attachments ride along.
func (s *Server) handleSendMail(w http.ResponseWriter, r *http.Request) {
	var req core.MailRequest
	var err error

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		req, err = s.parseMailMultipart(r)
	} else {
		req, err = parseMailJSON(r)
	}
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: err.Error()})
		return
	}

	if (req.Recipients.Single == "" && req.Recipients.List == nil) || req.Subject == "" || req.Message == "" {
		s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "recipients, subject, and message are required"})
		return
	}

	if req.Provider != "" {
		if _, ok := s.cfg.SMTP.Provider(req.Provider); !ok {
			s.respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Invalid SMTP provider"})
			return
		}
	}

	result, err := s.service.SendBulk(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err, "Failed to send emails")
		return
	}

	s.respondJSON(w, http.StatusOK, sendMailResponse{
		Success: true,
		Message: fmt.Sprintf("Email campaign completed. %d sent, %d failed.", result.Sent, result.Failed),
		Results: result,
	})
}

func parseMailJSON(r *http.Request) (core.MailRequest, error) {
	var body struct {
		Recipients   json.RawMessage `json:"recipients"`
		Subject      string          `json:"subject"`
		Message      string          `json:"message"`
		Template     string          `json:"template"`
		SMTPProvider string          `json:"smtpProvider"`
		CC           []string        `json:"cc"`
		BCC          []string        `json:"bcc"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return core.MailRequest{}, fmt.Errorf("Invalid JSON body")
	}

	spec, err := parseRecipients(body.Recipients)
	if err != nil {
		return core.MailRequest{}, err
	}

	return core.MailRequest{
		Recipients: spec,
		Subject:    body.Subject,
		Message:    body.Message,
		Template:   body.Template,
		Provider:   body.SMTPProvider,
		CC:         body.CC,
		BCC:        body.BCC,
	}, nil
}

func (s *Server) parseMailMultipart(r *http.Request) (core.MailRequest, error) {
	maxSize := s.cfg.Upload.MaxMailAttachmentSize
	if err := r.ParseMultipartForm(maxSize); err != nil {
		return core.MailRequest{}, fmt.Errorf("File upload error: %v", err)
	}

	form := r.MultipartForm
	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	spec, err := parseRecipients(json.RawMessage(value("recipients")))
	if err != nil {
		return core.MailRequest{}, err
	}

	req := core.MailRequest{
		Recipients: spec,
		Subject:    value("subject"),
		Message:    value("message"),
		Template:   value("template"),
		Provider:   value("smtpProvider"),
	}

	headers := form.File["attachments"]
	if len(headers) > s.cfg.Upload.MaxMailAttachments {
		return core.MailRequest{}, fmt.Errorf("a maximum of %d attachments is allowed", s.cfg.Upload.MaxMailAttachments)
	}
	for _, header := range headers {
		att, err := readMailAttachment(header, maxSize)
		if err != nil {
			return core.MailRequest{}, err
		}
		req.Attachments = append(req.Attachments, att)
	}

	return req, nil
}

func readMailAttachment(header *multipart.FileHeader, maxSize int64) (mailer.Attachment, error) {
	contentType := header.Header.Get("Content-Type")
	if !mailAttachmentTypes[contentType] {
		return mailer.Attachment{}, fmt.Errorf("Invalid file type. Only PDF, DOC, DOCX, JPG, PNG, and TXT files are allowed.")
	}
	if header.Size > maxSize {
		return mailer.Attachment{}, fmt.Errorf("%s exceeds the %dMB attachment limit", header.Filename, maxSize/(1<<20))
	}

	f, err := header.Open()
	if err != nil {
		return mailer.Attachment{}, fmt.Errorf("reading %s: %w", header.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return mailer.Attachment{}, fmt.Errorf("reading %s: %w", header.Filename, err)
	}
	if int64(len(data)) > maxSize {
		return mailer.Attachment{}, fmt.Errorf("%s exceeds the %dMB attachment limit", header.Filename, maxSize/(1<<20))
	}

	return mailer.Attachment{Filename: header.Filename, ContentType: contentType, Data: data}, nil
}

// parseRecipients accepts a JSON string (single address), a JSON array
// (registration ids or group names), or a raw unquoted address as sent by
// multipart forms.
func parseRecipients(raw json.RawMessage) (core.RecipientSpec, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return core.RecipientSpec{}, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return core.RecipientSpec{Single: single}, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return core.RecipientSpec{List: list}, nil
	}

	if !strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "{") {
		return core.RecipientSpec{Single: trimmed}, nil
	}

	return core.RecipientSpec{}, fmt.Errorf("recipients must be an email address or a list")
}
