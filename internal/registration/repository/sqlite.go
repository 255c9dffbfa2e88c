package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"seller-onboarding/internal/registration/domain"
)

// SQLiteRepository stores sessions in a SQLite registration_sessions table. Times are Unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a session repository backed by a migrated SQLite database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// Get returns the session for id, or nil if not found.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT document, version FROM registration_sessions WHERE id = ?`, id)
	return scanSession(row)
}

// FindActiveByEmail returns the most recently updated session for email, or nil.
func (r *SQLiteRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT document, version FROM registration_sessions
		 WHERE email = ?
		 ORDER BY updated_at DESC
		 LIMIT 1`, domain.NormalizeEmail(email))
	return scanSession(row)
}

// Save inserts or updates the session document with an optimistic version check.
func (r *SQLiteRepository) Save(ctx context.Context, s *domain.Session) error {
	doc, err := encode(s)
	if err != nil {
		return err
	}
	now := toMillis(time.Now())
	if s.Version == 0 {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO registration_sessions
			   (id, email, seller_type, current_step, document, version, link_expires_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)`,
			s.ID, s.Email(), string(s.SellerType), string(s.CurrentStep), string(doc),
			toMillis(s.LinkExpiresAt), toMillis(s.CreatedAt), now)
		if err != nil {
			if isSQLiteConstraint(err) {
				return domain.ErrSessionConflict
			}
			return err
		}
		s.Version = 1
		return nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE registration_sessions
		 SET email = ?, current_step = ?, document = ?, version = version + 1,
		     link_expires_at = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		s.Email(), string(s.CurrentStep), string(doc), toMillis(s.LinkExpiresAt), now, s.ID, s.Version)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrSessionConflict
	}
	s.Version++
	return nil
}

// Delete removes the session. Missing rows are ignored.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM registration_sessions WHERE id = ?`, id)
	return err
}

func isSQLiteConstraint(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
