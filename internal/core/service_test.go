package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/regdesk/internal/config"
	"github.com/JonMunkholm/regdesk/internal/filestore"
	"github.com/JonMunkholm/regdesk/internal/mailer"
	"github.com/JonMunkholm/regdesk/internal/store"
)

type testEnv struct {
	service *Service
	records *store.Memory
	files   *filestore.Memory
	mail    *mailer.Memory
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	records := store.NewMemory()
	files := filestore.NewMemory()
	transport := &mailer.Memory{}

	registry := mailer.NewRegistry(config.SMTPConfig{})
	registry.Register("gmail", transport, "team@example.com")

	service := NewService(records, files, registry, "team@example.com", "KMUN'25 Team", slog.Default())

	return &testEnv{service: service, records: records, files: files, mail: transport}
}

func pdfUpload(name string) Upload {
	return Upload{Filename: name, ContentType: "application/pdf", Content: []byte("%PDF-1.4 test")}
}

func (e *testEnv) mustCreate(t *testing.T, mutate func(map[string]any)) CreateResult {
	t.Helper()

	input := validSubmission()
	if mutate != nil {
		mutate(input)
	}

	result, err := e.service.Create(context.Background(), input, map[string]Upload{
		FileIDCard: pdfUpload("scan.pdf"),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return result
}

func TestCreateLifecycle(t *testing.T) {
	env := newTestEnv(t)

	result := env.mustCreate(t, func(m map[string]any) {
		m["committees"] = `["UNSC"]`
		m["positions"] = `["Chairperson"]`
		m["year"] = "2"
	})

	if result.ID == "" {
		t.Fatal("Create() returned empty id")
	}
	if _, err := time.Parse(time.RFC3339, result.SubmittedAt); err != nil {
		t.Errorf("submittedAt %q is not RFC3339: %v", result.SubmittedAt, err)
	}

	reg, err := env.service.Get(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if reg.Status != StatusPending {
		t.Errorf("status = %q, want %q", reg.Status, StatusPending)
	}
	if len(reg.Committees) != 1 || reg.Committees[0] != "UNSC" {
		t.Errorf("committees = %v, want [UNSC]", reg.Committees)
	}
	if reg.IDCardURL == "" {
		t.Error("idCardUrl not set after create")
	}
	if env.files.Len() != 1 {
		t.Errorf("file store holds %d objects, want 1", env.files.Len())
	}
}

func TestCreateRequiresIDCard(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Create(context.Background(), validSubmission(), nil)
	if _, ok := AsValidationErrors(err); !ok {
		t.Fatalf("Create() without id card = %v, want validation error", err)
	}
}

func TestCreateRequiredUploadFailureAborts(t *testing.T) {
	env := newTestEnv(t)
	env.files.FailUploads = true

	_, err := env.service.Create(context.Background(), validSubmission(), map[string]Upload{
		FileIDCard: pdfUpload("scan.pdf"),
	})
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("Create() = %v, want ErrUploadFailed", err)
	}

	docs, _ := env.records.GetCollection(context.Background(), store.CollectionRegistrations, "submittedAt", true)
	if len(docs) != 0 {
		t.Errorf("record persisted despite required upload failure: %d docs", len(docs))
	}
}

func TestCreateOptionalUploadFailureSwallowed(t *testing.T) {
	env := newTestEnv(t)
	env.files.FailNameContains = "certificates"

	result, err := env.service.Create(context.Background(), validSubmission(), map[string]Upload{
		FileIDCard:          pdfUpload("scan.pdf"),
		FileMUNCertificates: pdfUpload("certs.pdf"),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	reg, err := env.service.Get(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if reg.IDCardURL == "" {
		t.Error("idCardUrl not set")
	}
	if reg.MUNCertificatesURL != "" {
		t.Errorf("munCertificatesUrl = %q, want empty after failed optional upload", reg.MUNCertificatesURL)
	}
}

func TestUpdateFilesDiffCleansRemovedAttachments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	urlA, _ := env.files.Upload(ctx, []byte("a"), "1_certA.pdf", "application/pdf")
	urlB, _ := env.files.Upload(ctx, []byte("b"), "2_certB.pdf", "application/pdf")

	result, err := env.service.CreateJSON(ctx, validSubmission(), nil)
	if err != nil {
		t.Fatalf("CreateJSON() error: %v", err)
	}
	if err := env.records.UpdateDocument(ctx, store.CollectionRegistrations, result.ID, store.Fields{
		"files": map[string]string{"certA": urlA, "certB": urlB},
	}); err != nil {
		t.Fatalf("seeding files map: %v", err)
	}

	err = env.service.Update(ctx, result.ID, map[string]any{
		"files": map[string]any{"certB": urlB},
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	if _, ok := env.files.Object("1_certA.pdf"); ok {
		t.Error("removed attachment certA still in file store")
	}
	if _, ok := env.files.Object("2_certB.pdf"); !ok {
		t.Error("kept attachment certB was deleted")
	}
}

func TestUpdateNotFound(t *testing.T) {
	env := newTestEnv(t)

	err := env.service.Update(context.Background(), "missing-id", map[string]any{"name": "X"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesAttachmentsAndRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.mustCreate(t, nil)
	if env.files.Len() != 1 {
		t.Fatalf("setup: file store holds %d objects", env.files.Len())
	}

	if err := env.service.Delete(ctx, result.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if env.files.Len() != 0 {
		t.Errorf("attachments not cleaned up: %d objects remain", env.files.Len())
	}
	if _, err := env.service.Get(ctx, result.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) = %v, want ErrNotFound", err)
	}
}

func TestDeleteSucceedsWhenAttachmentCleanupFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.mustCreate(t, nil)
	env.files.FailDeletes = true

	if err := env.service.Delete(ctx, result.ID); err != nil {
		t.Fatalf("Delete() error despite best-effort cleanup: %v", err)
	}
	if _, err := env.service.Get(ctx, result.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("record still present after delete: %v", err)
	}
}

func TestBulkAction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.mustCreate(t, func(m map[string]any) { m["email"] = "a@example.com" })
	b := env.mustCreate(t, func(m map[string]any) { m["email"] = "b@example.com" })

	outcome := env.service.BulkAction(ctx, "approve", []string{a.ID, b.ID, "missing-id"}, nil)

	if outcome.Success != 2 || outcome.Failed != 1 {
		t.Fatalf("outcome = %+v, want 2 success / 1 failed", outcome)
	}
	if len(outcome.Errors) != 1 || !strings.Contains(outcome.Errors[0], "missing-id not found") {
		t.Errorf("errors = %v, want per-id not-found message", outcome.Errors)
	}

	reg, _ := env.service.Get(ctx, a.ID)
	if reg.Status != StatusApproved {
		t.Errorf("status after approve = %q, want %q", reg.Status, StatusApproved)
	}
}

func TestBulkActionUnknown(t *testing.T) {
	env := newTestEnv(t)

	outcome := env.service.BulkAction(context.Background(), "explode", []string{"some-id"}, nil)
	if outcome.Failed != 1 || len(outcome.Errors) != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Errors[0] != "Unknown action: explode" {
		t.Errorf("error = %q", outcome.Errors[0])
	}
}

func TestBulkUpdateWithoutData(t *testing.T) {
	env := newTestEnv(t)
	result := env.mustCreate(t, nil)

	outcome := env.service.BulkAction(context.Background(), "update", []string{result.ID}, nil)
	if outcome.Failed != 1 {
		t.Fatalf("outcome = %+v, want failure", outcome)
	}
	if want := "No update data provided for " + result.ID; outcome.Errors[0] != want {
		t.Errorf("error = %q, want %q", outcome.Errors[0], want)
	}
}

func TestAttachmentNameSingleExtension(t *testing.T) {
	env := newTestEnv(t)
	env.service.now = func() time.Time { return time.UnixMilli(1700000000000) }

	name := env.service.attachmentName("id-card", "My Scan.pdf")
	if name != "1700000000000_id-card_My Scan.pdf" {
		t.Errorf("attachmentName = %q", name)
	}
	if strings.Count(name, ".pdf") != 1 {
		t.Errorf("extension duplicated in %q", name)
	}
}
