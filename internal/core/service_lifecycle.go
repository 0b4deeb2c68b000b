package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/regdesk/internal/store"
)

// Logical upload slots used by the multipart submission form. The slot name
// embedded in the stored object name differs from the form field name for
// historical reasons and must stay stable so old objects remain resolvable.
var uploadSlots = map[string]string{
	FileIDCard:          "id-card",
	FileMUNCertificates: "certificates",
	FileChairingResume:  "resume",
}

// CreateResult is returned to the applicant on a successful submission.
type CreateResult struct {
	ID          string `json:"id"`
	SubmittedAt string `json:"submittedAt"`
}

// Create handles a multipart submission: one required ID card plus two
// optional attachments. A required-attachment upload failure aborts the
// whole creation; optional upload failures are logged and the field left
// empty.
func (s *Service) Create(ctx context.Context, input map[string]any, uploads map[string]Upload) (CreateResult, error) {
	reg, err := ValidateSubmission(input)
	if err != nil {
		return CreateResult{}, err
	}

	idCard, ok := uploads[FileIDCard]
	if !ok {
		return CreateResult{}, ValidationErrors{{Field: FileIDCard, Message: "ID Card is required"}}
	}

	url, err := s.uploadAttachment(ctx, uploadSlots[FileIDCard], idCard)
	if err != nil {
		return CreateResult{}, fmt.Errorf("%w: id card: %v", ErrUploadFailed, err)
	}
	reg.IDCardURL = url
	reg.IDCardFilename = idCard.Filename

	if cert, ok := uploads[FileMUNCertificates]; ok {
		url, err := s.uploadAttachment(ctx, uploadSlots[FileMUNCertificates], cert)
		if err != nil {
			s.logger.Error("optional attachment upload failed", "slot", FileMUNCertificates, "error", err)
		} else {
			reg.MUNCertificatesURL = url
			reg.MUNCertificatesFilename = cert.Filename
		}
	}

	if resume, ok := uploads[FileChairingResume]; ok {
		url, err := s.uploadAttachment(ctx, uploadSlots[FileChairingResume], resume)
		if err != nil {
			s.logger.Error("optional attachment upload failed", "slot", FileChairingResume, "error", err)
		} else {
			reg.ChairingResumeURL = url
			reg.ChairingResumeFilename = resume.Filename
		}
	}

	return s.persistNew(ctx, reg)
}

// CreateJSON handles the legacy JSON submission path: attachments arrive
// inline as base64 and land in the files map. Unlike the multipart path,
// any upload failure here aborts the creation.
func (s *Service) CreateJSON(ctx context.Context, input map[string]any, files map[string]Upload) (CreateResult, error) {
	reg, err := ValidateSubmission(input)
	if err != nil {
		return CreateResult{}, err
	}

	urls := make(map[string]string, len(files))
	for field, up := range files {
		url, err := s.uploadAttachment(ctx, field, up)
		if err != nil {
			return CreateResult{}, fmt.Errorf("%w: %s: %v", ErrUploadFailed, field, err)
		}
		urls[field] = url
	}
	reg.Files = urls

	return s.persistNew(ctx, reg)
}

func (s *Service) persistNew(ctx context.Context, reg Registration) (CreateResult, error) {
	reg.Status = StatusPending
	reg.SubmittedAt = s.now().UTC().Format(time.RFC3339)

	fields, err := reg.ToFields()
	if err != nil {
		return CreateResult{}, err
	}

	id, err := s.records.AddDocument(ctx, store.CollectionRegistrations, fields)
	if err != nil {
		return CreateResult{}, fmt.Errorf("saving registration: %w", err)
	}

	s.logger.Info("registration created", "id", id, "email", reg.Email)
	return CreateResult{ID: id, SubmittedAt: reg.SubmittedAt}, nil
}

// Get returns one registration by id.
func (s *Service) Get(ctx context.Context, id string) (Registration, error) {
	return s.loadRegistration(ctx, id)
}

// Update applies a partial admin edit. System fields are stripped, touched
// fields validated, and when the payload replaces the files map, attachments
// dropped from it are deleted from the file store best-effort before the
// record is merged.
func (s *Service) Update(ctx context.Context, id string, input map[string]any) error {
	update, err := ValidateUpdate(input)
	if err != nil {
		return err
	}
	if len(update) == 0 {
		return ValidationErrors{{Message: "no update data provided"}}
	}

	existing, err := s.loadRegistration(ctx, id)
	if err != nil {
		return err
	}

	if raw, ok := update["files"]; ok {
		newFiles := toStringMap(raw)
		for name, url := range existing.Files {
			if _, kept := newFiles[name]; !kept {
				s.deleteAttachmentByURL(ctx, url)
			}
		}
		update["files"] = newFiles
	}

	if err := s.records.UpdateDocument(ctx, store.CollectionRegistrations, id, update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("updating registration: %w", err)
	}

	s.logger.Info("registration updated", "id", id, "fields", len(update))
	return nil
}

// Delete removes a registration and its attachments. Attachment deletes fan
// out concurrently and are all attempted before the record goes away;
// individual failures are logged and never block the record deletion.
func (s *Service) Delete(ctx context.Context, id string) error {
	reg, err := s.loadRegistration(ctx, id)
	if err != nil {
		return err
	}

	urls := reg.AttachmentURLs()
	var wg sync.WaitGroup
	for _, url := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			s.deleteAttachmentByURL(ctx, u)
		}(url)
	}
	wg.Wait()

	if err := s.records.DeleteDocument(ctx, store.CollectionRegistrations, id); err != nil {
		return fmt.Errorf("deleting registration: %w", err)
	}

	s.logger.Info("registration deleted", "id", id, "attachments", len(urls))
	return nil
}

// BulkOutcome summarizes a bulk action: per-id failures accumulate here and
// never abort the remaining ids.
type BulkOutcome struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// BulkAction applies delete or update to each id independently. Accept,
// approve, reject, and pending are shorthand for a status-only update.
func (s *Service) BulkAction(ctx context.Context, action string, ids []string, data map[string]any) BulkOutcome {
	outcome := BulkOutcome{Errors: []string{}}

	switch action {
	case "accept", "approve":
		action, data = "update", map[string]any{"status": StatusApproved}
	case "reject":
		action, data = "update", map[string]any{"status": StatusRejected}
	case "pending":
		action, data = "update", map[string]any{"status": StatusPending}
	}

	for _, id := range ids {
		var err error
		switch action {
		case "delete":
			err = s.Delete(ctx, id)
		case "update":
			if data == nil {
				outcome.Failed++
				outcome.Errors = append(outcome.Errors, fmt.Sprintf("No update data provided for %s", id))
				continue
			}
			err = s.Update(ctx, id, data)
		default:
			outcome.Failed++
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("Unknown action: %s", action))
			continue
		}

		switch {
		case err == nil:
			outcome.Success++
		case errors.Is(err, store.ErrNotFound):
			outcome.Failed++
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("Registration %s not found", id))
		default:
			outcome.Failed++
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("Error processing %s: %v", id, err))
		}
	}

	return outcome
}

func toStringMap(v any) map[string]string {
	out := make(map[string]string)
	switch t := v.(type) {
	case map[string]string:
		return t
	case map[string]any:
		for k, e := range t {
			out[k] = fieldString(e)
		}
	}
	return out
}
