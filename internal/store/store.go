// Package store provides the record-store adapter: a thin document-collection
// accessor the rest of the application persists registrations through.
//
// The interface mirrors a document database: records are schemaless field
// maps addressed by collection and id, ordered reads are the store's
// responsibility, and updates are partial merges. Two implementations
// exist: a PostgreSQL-backed one (JSONB documents) for deployments and an
// in-memory one for tests and local development.
package store

import (
	"context"
	"errors"
)

// CollectionRegistrations is the sole collection the application uses.
const CollectionRegistrations = "registrations"

// ErrNotFound is returned when a document id does not exist in a collection.
var ErrNotFound = errors.New("document not found")

// Fields is one document's data as a schemaless field map.
type Fields = map[string]any

// RecordStore is the document-collection accessor consumed by the core
// service. Implementations must treat Update as a partial merge: keys
// present in the partial overwrite stored keys, absent keys are untouched.
type RecordStore interface {
	// GetCollection returns every document in the collection ordered by the
	// named field. Each returned document carries its id under the "id" key.
	GetCollection(ctx context.Context, collection, orderField string, descending bool) ([]Fields, error)

	// GetDocument returns one document by id, or ErrNotFound.
	GetDocument(ctx context.Context, collection, id string) (Fields, error)

	// AddDocument stores a new document and returns its assigned id.
	AddDocument(ctx context.Context, collection string, data Fields) (string, error)

	// UpdateDocument merges the partial into the stored document.
	// Returns ErrNotFound when the id does not exist.
	UpdateDocument(ctx context.Context, collection, id string, partial Fields) error

	// DeleteDocument removes a document. Returns ErrNotFound when absent.
	DeleteDocument(ctx context.Context, collection, id string) error
}
