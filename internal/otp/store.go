// Package otp implements the admin login flow: a one-time code mailed to an
// allow-listed address, held in a TTL store, and exchanged once for a
// session token.
package otp

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCodeNotFound is returned when no live code exists for an email, whether
// never issued, already used, or expired.
var ErrCodeNotFound = errors.New("otp not found or expired")

// Store holds pending codes keyed by email. One live code per email; issuing
// a new one replaces the old.
type Store interface {
	Put(ctx context.Context, email, code string, ttl time.Duration) error
	Get(ctx context.Context, email string) (string, error)
	Delete(ctx context.Context, email string) error
}

type memoryEntry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore keeps codes in-process. Suitable for single-instance
// deployments; codes are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, email, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[email] = memoryEntry{code: code, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[email]
	if !ok {
		return "", ErrCodeNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, email)
		return "", ErrCodeNotFound
	}
	return entry.code, nil
}

func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, email)
	return nil
}
