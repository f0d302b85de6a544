package service

import (
	"context"
	"sync"
	"time"

	"github.com/duoauth/duoauth/internal/clock"
	"github.com/duoauth/duoauth/internal/models"
	"github.com/sirupsen/logrus"
)

// Challenge carries the plaintext code back to the caller for out-of-band
// delivery. The code exists in this form exactly once, at issue time.
type Challenge struct {
	SessionID string
	Code      string
	ExpiresAt int64
}

// OTPService owns the challenge lifecycle: issue, verify, consume, expire.
// Per account a challenge moves absent -> pending -> consumed/expired, and
// both terminal states clear back to absent. A pending challenge is verified
// successfully at most once.
//
// All durable state lives in the stores; the service itself only holds a
// per-identity mutex map so that a concurrent issue and verify for the same
// account are applied as a single read-modify-write.
type OTPService struct {
	accounts   AccountStore
	challenges ChallengeStore
	generator  *OTPGenerator
	codec      *OTPCodec
	ttl        time.Duration
	clock      clock.Clocker
	logger     *logrus.Logger

	mu    sync.Mutex
	locks map[string]*identityLock
}

// identityLock is a mutex with a waiter count, so the map entry can be
// dropped once the last holder releases it and the map stays bounded by the
// number of in-flight operations.
type identityLock struct {
	sync.Mutex
	refs int
}

func NewOTPService(
	accounts AccountStore,
	challenges ChallengeStore,
	generator *OTPGenerator,
	codec *OTPCodec,
	ttl time.Duration,
	clk clock.Clocker,
	logger *logrus.Logger,
) *OTPService {
	return &OTPService{
		accounts:   accounts,
		challenges: challenges,
		generator:  generator,
		codec:      codec,
		ttl:        ttl,
		clock:      clk,
		logger:     logger,
		locks:      make(map[string]*identityLock),
	}
}

// Issue generates a fresh challenge for the account, overwriting any prior
// unconsumed one, and returns the plaintext code and session id. The plaintext
// is never persisted.
func (s *OTPService) Issue(ctx context.Context, identity string) (*Challenge, error) {
	lock := s.lockFor(identity)
	defer s.release(identity, lock)

	if _, err := s.accounts.Get(ctx, identity); err != nil {
		return nil, err
	}

	code, err := s.generator.NewCode()
	if err != nil {
		return nil, err
	}

	sessionID, err := s.generator.NewSessionID()
	if err != nil {
		return nil, err
	}

	codeHash, err := s.codec.Encode(code)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UnixMilli()
	ch := models.OTPChallenge{
		CodeHash:  codeHash,
		SessionID: sessionID,
		CreatedAt: now,
		ExpiresAt: now + s.ttl.Milliseconds(),
	}

	if err := s.challenges.Set(ctx, identity, ch); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"identity":   identity,
		"session_id": sessionID,
		"expires_at": ch.ExpiresAt,
	}).Info("OTP challenge issued")

	return &Challenge{
		SessionID: sessionID,
		Code:      code,
		ExpiresAt: ch.ExpiresAt,
	}, nil
}

// Verify checks a candidate code against the pending challenge.
//
// It returns nil on a match and clears the challenge, so a second call with
// the same code reports ErrNoChallenge. Expiry is checked before the code is
// compared: an expired challenge is cleared and reported as
// ErrChallengeExpired even when the candidate is correct. A mismatch leaves
// the challenge intact, retryable until the TTL elapses.
func (s *OTPService) Verify(ctx context.Context, identity, candidate string) error {
	lock := s.lockFor(identity)
	defer s.release(identity, lock)

	if _, err := s.accounts.Get(ctx, identity); err != nil {
		return err
	}

	ch, err := s.challenges.Get(ctx, identity)
	if err != nil {
		return err
	}

	if ch.ExpiredAt(s.clock.Now().UnixMilli()) {
		if err := s.challenges.Clear(ctx, identity, ch.CodeHash); err != nil {
			s.logger.WithError(err).WithField("identity", identity).
				Warn("Failed to clear expired challenge")
		}
		return ErrChallengeExpired
	}

	if !s.codec.Verify(candidate, ch.CodeHash) {
		return ErrInvalidCode
	}

	// Single use: the challenge must be gone before success is reported.
	if err := s.challenges.Clear(ctx, identity, ch.CodeHash); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"identity":   identity,
		"session_id": ch.SessionID,
	}).Info("OTP challenge verified")

	return nil
}

// lockFor returns the identity's lock, held. Pair with release.
func (s *OTPService) lockFor(identity string) *identityLock {
	s.mu.Lock()
	lock, ok := s.locks[identity]
	if !ok {
		lock = &identityLock{}
		s.locks[identity] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.Lock()
	return lock
}

func (s *OTPService) release(identity string, lock *identityLock) {
	lock.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, identity)
	}
	s.mu.Unlock()
}
