// Package devotp keeps plaintext verification codes by email for the in-process development gateway.
// It backs the GetDevCode RPC and is never enabled in production.
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds the latest plaintext code per email until it expires or is consumed.
type Store interface {
	// Put replaces any code held for email.
	Put(ctx context.Context, email, code string, expiresAt time.Time)
	// Get returns the code for email. ok is false when missing or expired.
	Get(ctx context.Context, email string) (code string, ok bool)
	// Delete drops the code for email, e.g. once it has been verified.
	Delete(ctx context.Context, email string)
}

type entry struct {
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Put(ctx context.Context, email, code string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[email] = entry{code: code, expiresAt: expiresAt}
}

func (s *MemoryStore) Get(ctx context.Context, email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[email]
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		delete(s.m, email)
		return "", false
	}
	return e.code, true
}

func (s *MemoryStore) Delete(ctx context.Context, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, email)
}
