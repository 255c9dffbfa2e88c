// Package repository persists audit logs for the Postgres and SQLite stores, with an in-memory variant.
package repository

import (
	"context"

	"seller-onboarding/internal/audit/domain"
)

// DefaultListLimit caps ListBySession when the caller passes a non-positive limit.
const DefaultListLimit = 50

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	// ListBySession returns the newest entries for sessionID first.
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.AuditLog, error)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
