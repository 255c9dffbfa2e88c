package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"seller-onboarding/internal/registration/domain"
)

const pgUniqueViolation = "23505"

// PostgresRepository stores sessions in the registration_sessions table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT document, version FROM registration_sessions WHERE id = $1`, id)
	return scanSession(row)
}

// FindActiveByEmail returns the most recently updated session for email, or nil.
func (r *PostgresRepository) FindActiveByEmail(ctx context.Context, email string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT document, version FROM registration_sessions
		 WHERE email = $1
		 ORDER BY updated_at DESC
		 LIMIT 1`, domain.NormalizeEmail(email))
	return scanSession(row)
}

// Save inserts or updates the session document with an optimistic version check.
func (r *PostgresRepository) Save(ctx context.Context, s *domain.Session) error {
	doc, err := encode(s)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if s.Version == 0 {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO registration_sessions
			   (id, email, seller_type, current_step, document, version, link_expires_at, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, 1, $6, $7, $8)`,
			s.ID, s.Email(), string(s.SellerType), string(s.CurrentStep), doc, s.LinkExpiresAt.UTC(), s.CreatedAt.UTC(), now)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return domain.ErrSessionConflict
			}
			return err
		}
		s.Version = 1
		return nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE registration_sessions
		 SET email = $2, current_step = $3, document = $4, version = version + 1,
		     link_expires_at = $5, updated_at = $6
		 WHERE id = $1 AND version = $7`,
		s.ID, s.Email(), string(s.CurrentStep), doc, s.LinkExpiresAt.UTC(), now, s.Version)
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
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM registration_sessions WHERE id = $1`, id)
	return err
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var (
		doc     []byte
		version int64
	)
	if err := row.Scan(&doc, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decode(doc, version)
}
