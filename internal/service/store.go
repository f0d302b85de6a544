package service

import (
	"context"

	"github.com/duoauth/duoauth/internal/models"
)

// AccountStore is the durable account record collaborator. Lookups that find
// nothing return ErrAccountNotFound; FindByEmail returns ErrDataIntegrity when
// the uniqueness invariant is broken and more than one record matches.
// Transport or I/O failures are wrapped with ErrStoreUnavailable.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	Get(ctx context.Context, id string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Account, error)
}

// ChallengeStore persists at most one OTP challenge per account, latest wins.
type ChallengeStore interface {
	// Set overwrites any prior challenge for the account.
	Set(ctx context.Context, identity string, ch models.OTPChallenge) error
	// Get returns ErrNoChallenge when no challenge is stored.
	Get(ctx context.Context, identity string) (*models.OTPChallenge, error)
	// Clear removes the challenge, but only while the stored digest still
	// equals codeHash. A challenge replaced by a concurrent issue is left
	// alone. Clearing an already-absent challenge is not an error.
	Clear(ctx context.Context, identity string, codeHash string) error
}
