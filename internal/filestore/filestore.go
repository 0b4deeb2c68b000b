// Package filestore provides the object-store adapter for uploaded
// attachments. Registrations persist attachment URLs; this package owns
// turning bytes into URLs, URLs back into object ids, and object ids into
// deletions or signed download links.
package filestore

import (
	"context"
	"time"
)

// Store is the attachment accessor consumed by the core service.
type Store interface {
	// Upload stores the file under the given name and returns its public URL.
	Upload(ctx context.Context, data []byte, name, contentType string) (string, error)

	// Delete removes the object. Callers treat failures as best-effort.
	Delete(ctx context.Context, objectID string) error

	// ObjectIDFromURL extracts the deletable object id from a stored URL.
	// Returns "" when the URL does not belong to this store.
	ObjectIDFromURL(url string) string

	// SignedURL returns a time-limited download URL for the object.
	SignedURL(ctx context.Context, objectID string, ttl time.Duration) (string, error)
}
