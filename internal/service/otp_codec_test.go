package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestOTPCodec_EncodeAndVerify(t *testing.T) {
	c := NewOTPCodec(bcrypt.MinCost)

	stored, err := c.Encode("482193")
	require.NoError(t, err)

	assert.True(t, c.Verify("482193", stored))
	assert.False(t, c.Verify("482194", stored))
	assert.False(t, c.Verify("", stored))
}

func TestOTPCodec_StoredFormHidesCode(t *testing.T) {
	c := NewOTPCodec(bcrypt.MinCost)

	stored, err := c.Encode("000042")
	require.NoError(t, err)

	assert.NotContains(t, stored, "000042")
}

func TestOTPCodec_MalformedStoredFormFailsClosed(t *testing.T) {
	c := NewOTPCodec(bcrypt.MinCost)

	for _, stored := range []string{"", "482193", "$2a$garbage"} {
		assert.False(t, c.Verify("482193", stored))
	}
}
