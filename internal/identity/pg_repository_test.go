package identity

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgRepository_CreateAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)

	mock.ExpectExec("INSERT INTO caregivers").
		WithArgs("alice", "hash").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO caregivers").
		WithArgs("alice", "hash").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	acc := Account{Username: "alice", Role: RoleCaregiver, PasswordHash: "hash"}
	require.NoError(t, repo.CreateAccount(context.Background(), acc))
	assert.ErrorIs(t, repo.CreateAccount(context.Background(), acc), ErrUsernameTaken)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_GetAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT username, password_hash, created_at\\s+FROM patients").
		WithArgs("pat").
		WillReturnRows(pgxmock.NewRows([]string{"username", "password_hash", "created_at"}).
			AddRow("pat", "hash", created))
	mock.ExpectQuery("FROM patients").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	acc, err := repo.GetAccount(context.Background(), RolePatient, "pat")
	require.NoError(t, err)
	assert.Equal(t, &Account{Username: "pat", Role: RolePatient, PasswordHash: "hash", CreatedAt: created}, acc)

	_, err = repo.GetAccount(context.Background(), RolePatient, "ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepository_UnknownRole(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	_, err = repo.GetAccount(context.Background(), Role("admin"), "x")
	assert.Error(t, err)
}
