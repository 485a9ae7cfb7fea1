package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rollbook/internal/apperr"
)

// PostgresRepository persists profiles in the users table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetProfile returns a single profile by id.
func (r *PostgresRepository) GetProfile(ctx context.Context, id string) (Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, created_at, updated_at
		FROM users WHERE id = $1
	`, id)
	var p Profile
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
		}
		return Profile{}, err
	}
	return p, nil
}

// CreateProfile inserts a profile, leaving an existing row untouched.
func (r *PostgresRepository) CreateProfile(ctx context.Context, p Profile) (Profile, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, full_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.Email, p.FullName, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Profile{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Profile{}, false, err
	}
	if n == 1 {
		return p, true, nil
	}
	stored, err := r.GetProfile(ctx, p.ID)
	return stored, false, err
}

// UpdateFullName changes the display name.
func (r *PostgresRepository) UpdateFullName(ctx context.Context, id, fullName string) (Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users SET full_name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, email, full_name, created_at, updated_at
	`, id, fullName)
	var p Profile
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
		}
		return Profile{}, err
	}
	return p, nil
}
