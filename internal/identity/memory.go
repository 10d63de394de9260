package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository for the CLI and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[Role]map[string]Account
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: map[Role]map[string]Account{
			RolePatient:   {},
			RoleCaregiver: {},
		},
	}
}

func (r *MemoryRepository) CreateAccount(_ context.Context, acc Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byName, ok := r.accounts[acc.Role]
	if !ok {
		return ErrAccountNotFound
	}
	if _, exists := byName[acc.Username]; exists {
		return ErrUsernameTaken
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}
	byName[acc.Username] = acc
	return nil
}

func (r *MemoryRepository) GetAccount(_ context.Context, role Role, username string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[role][username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &acc, nil
}

// MemorySessionStore keeps sessions in a map; tokens never expire.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (s *MemorySessionStore) Create(_ context.Context, sess Session) (string, error) {
	token := uuid.NewString()

	s.mu.Lock()
	s.sessions[token] = sess
	s.mu.Unlock()

	return token, nil
}

func (s *MemorySessionStore) Get(_ context.Context, token string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, token)
	return nil
}
