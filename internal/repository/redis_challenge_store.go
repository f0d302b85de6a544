package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/duoauth/duoauth/internal/models"
	"github.com/duoauth/duoauth/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisChallengeStore is the alternative challenge backend: one JSON blob per
// account at otp:<identity>. The key's server-side TTL is the challenge
// lifetime plus a grace window: eviction is garbage collection only, never
// the expiry mechanism. An expired challenge must remain readable so the
// lifecycle manager's lazy check can report it as expired rather than absent.
// Redis has no conditional delete, so callers rely on the lifecycle manager's
// per-identity serialization; Clear still re-reads and compares the digest
// before deleting.
type RedisChallengeStore struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisChallengeStore(client *redis.Client, logger *logrus.Logger) *RedisChallengeStore {
	return &RedisChallengeStore{
		client: client,
		logger: logger,
	}
}

func challengeKey(identity string) string {
	return fmt.Sprintf("otp:%s", identity)
}

// challengeEvictionGrace pads the key TTL past the challenge expiry so a
// verify attempt after the deadline still finds the record and gets the
// expired outcome instead of no-challenge.
const challengeEvictionGrace = time.Hour

func challengeTTL(ch models.OTPChallenge) time.Duration {
	return time.Duration(ch.ExpiresAt-ch.CreatedAt)*time.Millisecond + challengeEvictionGrace
}

func (s *RedisChallengeStore) Set(ctx context.Context, identity string, ch models.OTPChallenge) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}

	if err := s.client.Set(ctx, challengeKey(identity), data, challengeTTL(ch)).Err(); err != nil {
		s.logger.WithError(err).Error("Failed to store challenge in Redis")
		return fmt.Errorf("%w: failed to store challenge: %v", service.ErrStoreUnavailable, err)
	}

	return nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, identity string) (*models.OTPChallenge, error) {
	data, err := s.client.Get(ctx, challengeKey(identity)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, service.ErrNoChallenge
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to get challenge from Redis")
		return nil, fmt.Errorf("%w: failed to get challenge: %v", service.ErrStoreUnavailable, err)
	}

	var ch models.OTPChallenge
	if err := json.Unmarshal([]byte(data), &ch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}

	return &ch, nil
}

func (s *RedisChallengeStore) Clear(ctx context.Context, identity string, codeHash string) error {
	ch, err := s.Get(ctx, identity)
	if errors.Is(err, service.ErrNoChallenge) {
		return nil
	}
	if err != nil {
		return err
	}

	if ch.CodeHash != codeHash {
		// Replaced by a newer issue; leave it alone.
		return nil
	}

	if err := s.client.Del(ctx, challengeKey(identity)).Err(); err != nil {
		s.logger.WithError(err).Error("Failed to clear challenge in Redis")
		return fmt.Errorf("%w: failed to clear challenge: %v", service.ErrStoreUnavailable, err)
	}

	return nil
}
