package identity

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/apperr"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/logging"
)

type Service struct {
	repo Repository
	cost int
}

func NewService(repo Repository, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, cost: bcryptCost}
}

// Register creates a patient or caregiver account.
func (s *Service) Register(ctx context.Context, role Role, username, password string) error {
	const op = "register"

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return apperr.New(apperr.KindInvalidInput, op, "Please try again")
	}
	if role != RolePatient && role != RoleCaregiver {
		return apperr.New(apperr.KindInvalidInput, op, "Please try again")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, op, err)
	}

	err = s.repo.CreateAccount(ctx, Account{
		Username:     username,
		Role:         role,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return &apperr.Error{Kind: apperr.KindConflict, Op: op, Message: "Username taken, try again", Err: err}
		}
		logging.FromContext(ctx).Error().Err(err).Str("role", string(role)).Msg("create account failed")
		return apperr.Wrap(apperr.KindStoreUnavailable, op, err)
	}

	logging.FromContext(ctx).Info().Str("role", string(role)).Str("username", username).Msg("account created")
	return nil
}

// Login checks credentials and returns the session for the account.
func (s *Service) Login(ctx context.Context, role Role, username, password string) (*Session, error) {
	const op = "login"

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.New(apperr.KindInvalidInput, op, "Login failed.")
	}

	acc, err := s.repo.GetAccount(ctx, role, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, apperr.New(apperr.KindLoginFailed, op, "Login failed.")
		}
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.New(apperr.KindLoginFailed, op, "Login failed.")
	}

	return &Session{Username: acc.Username, Role: role}, nil
}
