package repository

import (
	"context"
	"database/sql"
	"time"

	"seller-onboarding/internal/audit/domain"
)

// SQLiteRepository stores audit logs in SQLite. created_at is Unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns an audit log repository backed by a migrated SQLite database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create persists the audit log. The audit log must have ID set.
func (r *SQLiteRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, session_id, seller_id, action, resource, ip, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SessionID, a.SellerID, a.Action, a.Resource, a.IP, meta, a.CreatedAt.UTC().UnixMilli())
	return err
}

// ListBySession returns up to limit entries for the session, newest first.
func (r *SQLiteRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, seller_id, action, resource, ip, metadata, created_at
		 FROM audit_logs
		 WHERE session_id = ?
		 ORDER BY created_at DESC, id
		 LIMIT ?`, sessionID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		var meta sql.NullString
		var created int64
		if err := rows.Scan(&a.ID, &a.SessionID, &a.SellerID, &a.Action, &a.Resource, &a.IP, &meta, &created); err != nil {
			return nil, err
		}
		a.Metadata = meta.String
		a.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, &a)
	}
	return out, rows.Err()
}
