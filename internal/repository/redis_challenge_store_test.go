package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// The key must outlive the challenge: if Redis evicted it at the expiry
// deadline, a late verify would see no-challenge instead of expired.
func TestChallengeTTLOutlivesExpiry(t *testing.T) {
	ch := testChallenge()
	lifetime := time.Duration(ch.ExpiresAt-ch.CreatedAt) * time.Millisecond

	ttl := challengeTTL(ch)

	assert.Equal(t, lifetime+challengeEvictionGrace, ttl)
	assert.Greater(t, ttl, lifetime)
}
