package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a RecordStore backed by a single JSONB documents table.
// Document ordering and merge-on-update are pushed down to PostgreSQL
// (ORDER BY on an extracted field, jsonb || for shallow merges).
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres record store on the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the documents table and its ordering index if missing.
// Call once on startup.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    collection text NOT NULL,
    id         text NOT NULL,
    data       jsonb NOT NULL,
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_submitted_at_idx
    ON documents (collection, (data->>'submittedAt'));
`
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure documents schema: %w", err)
	}
	return nil
}

// orderFieldPattern restricts order fields to plain identifiers; the field
// name is interpolated into the query text because ORDER BY expressions
// cannot be bound as parameters.
var orderFieldPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// GetCollection returns all documents ordered by a top-level data field.
// Timestamps are stored as ISO-8601 strings, so lexicographic order is
// chronological order.
func (p *Postgres) GetCollection(ctx context.Context, collection, orderField string, descending bool) ([]Fields, error) {
	if !orderFieldPattern.MatchString(orderField) {
		return nil, fmt.Errorf("invalid order field: %q", orderField)
	}

	dir := "ASC"
	if descending {
		dir = "DESC"
	}
	query := fmt.Sprintf(
		`SELECT id, data FROM documents WHERE collection = $1 ORDER BY data->>'%s' %s`,
		orderField, dir,
	)

	rows, err := p.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Fields
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decodeDocument(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collection %s: %w", collection, err)
	}

	return docs, nil
}

// GetDocument returns one document by id, or ErrNotFound.
func (p *Postgres) GetDocument(ctx context.Context, collection, id string) (Fields, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document %s/%s: %w", collection, id, err)
	}

	return decodeDocument(id, raw)
}

// AddDocument stores a new document under a fresh uuid and returns the id.
func (p *Postgres) AddDocument(ctx context.Context, collection string, data Fields) (string, error) {
	id := uuid.NewString()

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
		collection, id, raw,
	)
	if err != nil {
		return "", fmt.Errorf("add document to %s: %w", collection, err)
	}

	return id, nil
}

// UpdateDocument shallow-merges the partial into the stored document.
func (p *Postgres) UpdateDocument(ctx context.Context, collection, id string, partial Fields) error {
	raw, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("encode partial: %w", err)
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE documents SET data = data || $3 WHERE collection = $1 AND id = $2`,
		collection, id, raw,
	)
	if err != nil {
		return fmt.Errorf("update document %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteDocument removes a document by id.
func (p *Postgres) DeleteDocument(ctx context.Context, collection, id string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// decodeDocument unmarshals a stored JSONB payload and injects the row id.
func decodeDocument(id string, raw []byte) (Fields, error) {
	doc := Fields{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc["id"] = id
	return doc, nil
}
