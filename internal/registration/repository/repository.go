// Package repository persists registration sessions as one JSON document per session.
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"seller-onboarding/internal/registration/domain"
)

// Repository defines persistence for registration sessions.
// Get and FindActiveByEmail return nil, nil when nothing matches.
type Repository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	// FindActiveByEmail returns the most recently updated session for the normalized email.
	FindActiveByEmail(ctx context.Context, email string) (*domain.Session, error)
	// Save inserts the session when Version is 0, otherwise updates it only if the stored version
	// still equals Version. On success Version is advanced; on a lost race it returns domain.ErrSessionConflict.
	Save(ctx context.Context, s *domain.Session) error
	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}

func encode(s *domain.Session) ([]byte, error) {
	doc, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return doc, nil
}

func decode(doc []byte, version int64) (*domain.Session, error) {
	var s domain.Session
	if err := json.Unmarshal(doc, &s); err != nil {
		return nil, fmt.Errorf("decode session document: %w", err)
	}
	s.Version = version
	return &s, nil
}
