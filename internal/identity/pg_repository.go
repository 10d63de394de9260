package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/db"
)

type PgRepository struct {
	q db.Querier
}

func NewPgRepository(q db.Querier) *PgRepository {
	return &PgRepository{q: q}
}

func tableFor(role Role) (string, error) {
	switch role {
	case RolePatient:
		return "patients", nil
	case RoleCaregiver:
		return "caregivers", nil
	}
	return "", fmt.Errorf("unknown role %q", role)
}

func (r *PgRepository) CreateAccount(ctx context.Context, acc Account) error {
	table, err := tableFor(acc.Role)
	if err != nil {
		return err
	}

	tag, err := r.q.Exec(ctx, `
		INSERT INTO `+table+` (username, password_hash, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (username) DO NOTHING
	`, acc.Username, acc.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUsernameTaken
	}
	return nil
}

func (r *PgRepository) GetAccount(ctx context.Context, role Role, username string) (*Account, error) {
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}

	acc := Account{Role: role}
	err = r.q.QueryRow(ctx, `
		SELECT username, password_hash, created_at
		FROM `+table+`
		WHERE username = $1
	`, username).Scan(&acc.Username, &acc.PasswordHash, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return &acc, nil
}
