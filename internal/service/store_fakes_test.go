package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/duoauth/duoauth/internal/models"
	"github.com/sirupsen/logrus"
)

// fakeClock implements clock.Clocker with manually advanced time.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// memAccountStore is an in-memory AccountStore. Setting failWith makes every
// call fail, simulating an unreachable backend.
type memAccountStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	failWith error
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{accounts: make(map[string]models.Account)}
}

func (s *memAccountStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	var matches []models.Account
	for _, a := range s.accounts {
		if a.Email == email {
			matches = append(matches, a)
		}
	}

	switch len(matches) {
	case 0:
		return nil, ErrAccountNotFound
	case 1:
		a := matches[0]
		return &a, nil
	default:
		return nil, fmt.Errorf("%w: duplicate accounts for email", ErrDataIntegrity)
	}
}

func (s *memAccountStore) Get(_ context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (s *memAccountStore) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}

	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("%w: account already exists", ErrDataIntegrity)
	}
	s.accounts[account.ID] = *account
	return nil
}

func (s *memAccountStore) Update(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}

	if _, ok := s.accounts[account.ID]; !ok {
		return ErrAccountNotFound
	}
	s.accounts[account.ID] = *account
	return nil
}

func (s *memAccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}

	if _, ok := s.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *memAccountStore) List(_ context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out, nil
}

// memChallengeStore is an in-memory ChallengeStore honoring the conditional
// clear contract.
type memChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]models.OTPChallenge
	failWith   error
}

func newMemChallengeStore() *memChallengeStore {
	return &memChallengeStore{challenges: make(map[string]models.OTPChallenge)}
}

func (s *memChallengeStore) Set(_ context.Context, identity string, ch models.OTPChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}

	s.challenges[identity] = ch
	return nil
}

func (s *memChallengeStore) Get(_ context.Context, identity string) (*models.OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}

	ch, ok := s.challenges[identity]
	if !ok {
		return nil, ErrNoChallenge
	}
	return &ch, nil
}

func (s *memChallengeStore) Clear(_ context.Context, identity string, codeHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}

	ch, ok := s.challenges[identity]
	if !ok || ch.CodeHash != codeHash {
		return nil
	}
	delete(s.challenges, identity)
	return nil
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
