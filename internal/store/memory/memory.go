// Package memory implementa el credential store en memoria. Para desarrollo
// y tests; el proceso pierde todo al salir.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ediflysi/jetdesk/internal/domain/repository"
)

// Store implementa repository.CredentialRepository con un map protegido por
// mutex. El mutex también hace atómico el increment-and-fetch de lockout:
// dos fallos concurrentes nunca observan el mismo contador.
type Store struct {
	mu     sync.Mutex
	byID   map[string]*repository.Credential
	byUser map[string]string // username -> id
}

// New crea un store vacío.
func New() *Store {
	return &Store{
		byID:   make(map[string]*repository.Credential),
		byUser: make(map[string]string),
	}
}

func clone(c *repository.Credential) *repository.Credential {
	cp := *c
	if c.Lockout.LastFailedAt != nil {
		t := *c.Lockout.LastFailedAt
		cp.Lockout.LastFailedAt = &t
	}
	if c.Lockout.LockedUntil != nil {
		t := *c.Lockout.LockedUntil
		cp.Lockout.LockedUntil = &t
	}
	if c.LastLogin != nil {
		t := *c.LastLogin
		cp.LastLogin = &t
	}
	return &cp
}

func (s *Store) FindByUsername(_ context.Context, username string) (*repository.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUser[strings.ToLower(username)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *Store) FindByID(_ context.Context, id string) (*repository.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(c), nil
}

func (s *Store) Create(_ context.Context, in repository.CreateInput) (*repository.Credential, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if username == "" || in.PasswordDigest == "" {
		return nil, repository.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUser[username]; exists {
		return nil, repository.ErrConflict
	}

	now := time.Now().UTC()
	c := &repository.Credential{
		ID:             uuid.NewString(),
		Username:       username,
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		PasswordDigest: in.PasswordDigest,
		Level:          in.Level,
		Role:           in.Role,
		Active:         true,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.byID[c.ID] = c
	s.byUser[username] = c.ID
	return clone(c), nil
}

func (s *Store) UpdateProfile(_ context.Context, id string, in repository.ProfileInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Email != nil {
		c.Email = *in.Email
	}
	if in.Phone != nil {
		c.Phone = *in.Phone
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, id, newDigest string) error {
	if newDigest == "" {
		return repository.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.PasswordDigest = newDigest
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) AddFailedAttempt(_ context.Context, id string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	c.Lockout.FailedAttempts++
	t := now
	c.Lockout.LastFailedAt = &t
	c.UpdatedAt = time.Now().UTC()
	return c.Lockout.FailedAttempts, nil
}

func (s *Store) SetLock(_ context.Context, id string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u := until
	c.Lockout.LockedUntil = &u
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ResetLockout(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Lockout = repository.LockoutState{}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetTwoFactorSecret(_ context.Context, id, secretEnc string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.TwoFactorSecretEnc = secretEnc
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetTwoFactorEnabled(_ context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.TwoFactorEnabled = enabled
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	t := at
	c.LastLogin = &t
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// SetActive y SetBlocked existen para seeds y tests de cuentas
// deshabilitadas.
func (s *Store) SetActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[id]; ok {
		c.Active = active
	}
}

func (s *Store) SetBlocked(id string, blocked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[id]; ok {
		c.Blocked = blocked
	}
}
