package repository

import (
	"context"
	"sync"
	"time"

	"seller-onboarding/internal/registration/domain"
)

type memoryRow struct {
	doc       []byte
	email     string
	version   int64
	updatedAt time.Time
}

// MemoryRepository keeps session documents in process memory. Documents are stored serialized so
// callers never share state with the store.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]memoryRow
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]memoryRow)}
}

// Get returns the session for id, or nil if not found.
func (r *MemoryRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	row, ok := r.rows[id]
	r.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return decode(row.doc, row.version)
}

// FindActiveByEmail returns the most recently updated session for email, or nil.
func (r *MemoryRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.Session, error) {
	email = domain.NormalizeEmail(email)
	r.mu.Lock()
	var best *memoryRow
	for _, row := range r.rows {
		if row.email != email {
			continue
		}
		if best == nil || row.updatedAt.After(best.updatedAt) {
			best = &row
		}
	}
	r.mu.Unlock()
	if best == nil {
		return nil, nil
	}
	return decode(best.doc, best.version)
}

// Save stores the session with an optimistic version check.
func (r *MemoryRepository) Save(ctx context.Context, s *domain.Session) error {
	doc, err := encode(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[s.ID]
	switch {
	case s.Version == 0 && ok:
		return domain.ErrSessionConflict
	case s.Version != 0 && (!ok || existing.version != s.Version):
		return domain.ErrSessionConflict
	}
	next := s.Version + 1
	r.rows[s.ID] = memoryRow{doc: doc, email: s.Email(), version: next, updatedAt: s.LastActivityAt}
	s.Version = next
	return nil
}

// Delete removes the session.
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.rows, id)
	r.mu.Unlock()
	return nil
}
