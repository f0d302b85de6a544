package service

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// OTPCodec turns a plaintext passcode into its storable digest and checks
// candidates against it. It uses the same bcrypt primitive as PasswordHasher,
// so a read of persisted state (database export, backup leak) never yields a
// usable code.
type OTPCodec struct {
	cost int
}

func NewOTPCodec(cost int) *OTPCodec {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &OTPCodec{cost: cost}
}

func (c *OTPCodec) Encode(code string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(code), c.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash OTP: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether candidate matches the stored digest. A malformed
// stored form fails closed.
func (c *OTPCodec) Verify(candidate, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
}
