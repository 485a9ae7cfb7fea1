package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/apperr"
)

func TestCreateProfileExisting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO users .* ON CONFLICT \(id\) DO NOTHING`).
		WithArgs("u1", "t@example.com", "T", now, now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id, email, full_name, created_at, updated_at\s+FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "full_name", "created_at", "updated_at"}).
			AddRow("u1", "t@example.com", "Original", now.Add(-time.Hour), now.Add(-time.Hour)))

	p, created, err := repo.CreateProfile(context.Background(), Profile{ID: "u1", Email: "t@example.com", FullName: "T", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Original", p.FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFullNameMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`UPDATE users SET full_name`).
		WithArgs("u1", "New").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "full_name", "created_at", "updated_at"}))

	_, err = NewPostgresRepository(db).UpdateFullName(context.Background(), "u1", "New")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
