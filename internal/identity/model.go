package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/apperr"
)

type Role string

const (
	RolePatient   Role = "patient"
	RoleCaregiver Role = "caregiver"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePatient:
		return RolePatient, nil
	case RoleCaregiver:
		return RoleCaregiver, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type Account struct {
	Username     string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

// Session is the authenticated identity handed to every operation.
// A nil *Session means nobody is logged in.
type Session struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Username != ""
}

// RequireAny fails unless somebody is logged in.
func (s *Session) RequireAny(op string) error {
	if !s.Authenticated() {
		return apperr.New(apperr.KindNotAuthenticated, op, "Please login first")
	}
	return nil
}

func (s *Session) RequirePatient(op string) error {
	if err := s.RequireAny(op); err != nil {
		return err
	}
	if s.Role != RolePatient {
		return apperr.New(apperr.KindWrongRole, op, "Please login as a patient")
	}
	return nil
}

func (s *Session) RequireCaregiver(op string) error {
	if !s.Authenticated() {
		return apperr.New(apperr.KindNotAuthenticated, op, "Please login as a caregiver first!")
	}
	if s.Role != RoleCaregiver {
		return apperr.New(apperr.KindWrongRole, op, "Please login as a caregiver first!")
	}
	return nil
}
