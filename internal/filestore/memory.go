package filestore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Memory keeps objects in a map. It backs tests and local development where
// no object store is reachable.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string

	// FailUploads and FailDeletes make the corresponding operation error,
	// used to exercise the attachment cleanup paths in tests. FailNameContains
	// fails only uploads whose object name contains the substring.
	FailUploads      bool
	FailDeletes      bool
	FailNameContains string
}

func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string][]byte),
		baseURL: "memory://files",
	}
}

func (m *Memory) Upload(_ context.Context, data []byte, name, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUploads || (m.FailNameContains != "" && strings.Contains(name, m.FailNameContains)) {
		return "", fmt.Errorf("uploading %s: store unavailable", name)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[name] = buf
	return m.baseURL + "/" + name, nil
}

func (m *Memory) Delete(_ context.Context, objectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailDeletes {
		return fmt.Errorf("deleting %s: store unavailable", objectID)
	}
	delete(m.objects, objectID)
	return nil
}

func (m *Memory) ObjectIDFromURL(url string) string {
	if !strings.HasPrefix(url, m.baseURL+"/") {
		return ""
	}
	return strings.TrimPrefix(url, m.baseURL+"/")
}

func (m *Memory) SignedURL(_ context.Context, objectID string, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[objectID]; !ok {
		return "", fmt.Errorf("signing %s: no such object", objectID)
	}
	return m.baseURL + "/" + objectID + "?signed=1", nil
}

// Object returns a stored object's bytes, for test assertions.
func (m *Memory) Object(objectID string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[objectID]
	return data, ok
}

// Len reports how many objects are stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
