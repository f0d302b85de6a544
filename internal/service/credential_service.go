package service

import (
	"context"
	"errors"

	"github.com/duoauth/duoauth/internal/models"
	"github.com/sirupsen/logrus"
)

// CredentialService authenticates the first factor: email plus password.
type CredentialService struct {
	accounts AccountStore
	hasher   *PasswordHasher
	logger   *logrus.Logger
}

func NewCredentialService(accounts AccountStore, hasher *PasswordHasher, logger *logrus.Logger) *CredentialService {
	return &CredentialService{
		accounts: accounts,
		hasher:   hasher,
		logger:   logger,
	}
}

// Authenticate looks up the account by email and verifies the password.
// Unknown email and wrong password both come back as ErrInvalidCredentials so
// the caller cannot probe which emails exist. Callers decide from the returned
// Role whether an OTP challenge is still required: admins are done after this
// step, users are not.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		// Duplicate email rows or a store failure; neither is a
		// credential problem and both surface as-is.
		return nil, err
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.logger.WithField("identity", account.ID).Warn("Password verification failed")
		return nil, ErrInvalidCredentials
	}

	return account, nil
}
