package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateAppliesEmbeddedSchema(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	db := &DB{Client: conn}
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS users .* UNIQUE \(register_number, date\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, db.Migrate(context.Background()))

	mock.ExpectExec(`CREATE TABLE`).WillReturnError(errors.New("permission denied"))
	assert.ErrorContains(t, db.Migrate(context.Background()), "apply schema")

	mock.ExpectPing()
	assert.True(t, db.Healthy(context.Background()))
	mock.ExpectPing().WillReturnError(errors.New("gone"))
	assert.False(t, db.Healthy(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}
