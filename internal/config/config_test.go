package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.OTP.TTL)
	assert.Equal(t, ChallengeStoreDynamoDB, cfg.OTP.Store)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, "DuoAuthTable", cfg.DynamoDB.TableName)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OTP_TTL", "15s")
	t.Setenv("CHALLENGE_STORE", "redis")
	t.Setenv("BCRYPT_COST", "12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.OTP.TTL)
	assert.Equal(t, ChallengeStoreRedis, cfg.OTP.Store)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
}

func TestLoad_RejectsUnknownChallengeStore(t *testing.T) {
	t.Setenv("CHALLENGE_STORE", "memcached")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_AdminEmailNeedsPassword(t *testing.T) {
	t.Setenv("ADMIN_EMAIL", "admin@example.com")
	t.Setenv("ADMIN_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}
