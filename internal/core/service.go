package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/JonMunkholm/regdesk/internal/filestore"
	"github.com/JonMunkholm/regdesk/internal/mailer"
	"github.com/JonMunkholm/regdesk/internal/store"
)

// Service owns the registration lifecycle and every admin read path over
// it. All methods are safe for concurrent use; state lives in the injected
// stores.
type Service struct {
	records store.RecordStore
	files   filestore.Store
	mail    *mailer.Registry

	fromName string
	from     string
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(records store.RecordStore, files filestore.Store, mail *mailer.Registry, from, fromName string, logger *slog.Logger) *Service {
	return &Service{
		records:  records,
		files:    files,
		mail:     mail,
		from:     from,
		fromName: fromName,
		logger:   logger,
		now:      time.Now,
	}
}

// Upload is one incoming attachment from either submission path.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// attachmentName builds a collision-resistant object name: millisecond
// timestamp, the logical slot, and the original name with its extension
// stripped and reappended exactly once.
func (s *Service) attachmentName(logical, original string) string {
	ext := path.Ext(original)
	base := strings.TrimSpace(strings.TrimSuffix(original, ext))
	base = strings.ReplaceAll(base, "/", "-")
	if base == "" {
		base = "upload"
	}
	return fmt.Sprintf("%d_%s_%s%s", s.now().UnixMilli(), logical, base, ext)
}

// uploadAttachment stores one file and returns its URL.
func (s *Service) uploadAttachment(ctx context.Context, logical string, up Upload) (string, error) {
	name := s.attachmentName(logical, up.Filename)
	url, err := s.files.Upload(ctx, up.Content, name, up.ContentType)
	if err != nil {
		return "", err
	}
	s.logger.Info("attachment stored", "name", name, "bytes", len(up.Content))
	return url, nil
}

// deleteAttachmentByURL resolves a stored URL to an object id and deletes
// it. Foreign URLs and delete failures are logged, never returned; cleanup
// is best-effort everywhere it happens.
func (s *Service) deleteAttachmentByURL(ctx context.Context, url string) {
	objectID := s.files.ObjectIDFromURL(url)
	if objectID == "" {
		s.logger.Warn("skipping unknown attachment url", "url", url)
		return
	}
	if err := s.files.Delete(ctx, objectID); err != nil {
		s.logger.Error("attachment cleanup failed", "object_id", objectID, "error", err)
		return
	}
	s.logger.Info("attachment deleted", "object_id", objectID)
}

// loadRegistration fetches one record and decodes it.
func (s *Service) loadRegistration(ctx context.Context, id string) (Registration, error) {
	fields, err := s.records.GetDocument(ctx, store.CollectionRegistrations, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Registration{}, ErrNotFound
		}
		return Registration{}, err
	}
	return FromFields(fields)
}

// loadAll fetches the full collection newest-first and decodes each record.
// Undecodable records are logged and skipped rather than failing the whole
// read.
func (s *Service) loadAll(ctx context.Context) ([]Registration, error) {
	docs, err := s.records.GetCollection(ctx, store.CollectionRegistrations, "submittedAt", true)
	if err != nil {
		return nil, fmt.Errorf("loading registrations: %w", err)
	}

	regs := make([]Registration, 0, len(docs))
	for _, doc := range docs {
		reg, err := FromFields(doc)
		if err != nil {
			s.logger.Warn("skipping undecodable record", "id", doc["id"], "error", err)
			continue
		}
		regs = append(regs, reg)
	}
	return regs, nil
}
