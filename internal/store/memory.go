package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process RecordStore used in tests and local development.
// Documents are deep-copied on the way in and out so callers can never
// mutate stored state through a returned map.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Fields
}

// NewMemory creates an empty in-memory record store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]Fields)}
}

// GetCollection returns all documents ordered by a top-level field value.
func (m *Memory) GetCollection(_ context.Context, collection, orderField string, descending bool) ([]Fields, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []Fields
	for id, data := range m.collections[collection] {
		doc, err := copyFields(data)
		if err != nil {
			return nil, err
		}
		doc["id"] = id
		docs = append(docs, doc)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		a := fieldString(docs[i], orderField)
		b := fieldString(docs[j], orderField)
		if descending {
			return a > b
		}
		return a < b
	})

	return docs, nil
}

// GetDocument returns one document by id, or ErrNotFound.
func (m *Memory) GetDocument(_ context.Context, collection, id string) (Fields, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}

	doc, err := copyFields(data)
	if err != nil {
		return nil, err
	}
	doc["id"] = id
	return doc, nil
}

// AddDocument stores a new document under a fresh uuid and returns the id.
func (m *Memory) AddDocument(_ context.Context, collection string, data Fields) (string, error) {
	doc, err := copyFields(data)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]Fields)
	}
	id := uuid.NewString()
	m.collections[collection][id] = doc
	return id, nil
}

// UpdateDocument shallow-merges the partial into the stored document.
func (m *Memory) UpdateDocument(_ context.Context, collection, id string, partial Fields) error {
	update, err := copyFields(partial)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range update {
		data[k] = v
	}
	return nil
}

// DeleteDocument removes a document by id.
func (m *Memory) DeleteDocument(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.collections[collection], id)
	return nil
}

// copyFields deep-copies a field map through a JSON round trip, which also
// canonicalizes values to JSON types (numbers become float64) the same way
// the PostgreSQL implementation does.
func copyFields(data Fields) (Fields, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	out := Fields{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	return out, nil
}

// fieldString renders a top-level field value for ordering comparisons.
func fieldString(doc Fields, field string) string {
	v, ok := doc[field]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
