package identity

import (
	"context"
	"errors"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrSessionNotFound = errors.New("session not found")
)

// Repository stores patient and caregiver accounts.
type Repository interface {
	CreateAccount(ctx context.Context, acc Account) error
	GetAccount(ctx context.Context, role Role, username string) (*Account, error)
}

// SessionStore keeps logged-in sessions addressable by an opaque token.
type SessionStore interface {
	Create(ctx context.Context, s Session) (string, error)
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}
