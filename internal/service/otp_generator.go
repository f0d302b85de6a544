package service

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/duoauth/duoauth/internal/clock"
)

const (
	// codeMax bounds the passcode space: codes are uniform over
	// 000000-999999, roughly 19.9 bits of entropy. That is the security
	// bound of this layer and the reason codes are short-lived.
	codeMax = 1000000

	sessionAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	sessionSuffixLen = 8
)

// OTPGenerator produces passcodes and session identifiers. Codes come from
// crypto/rand; a predictable code generator would defeat the whole scheme.
type OTPGenerator struct {
	clock clock.Clocker
}

func NewOTPGenerator(clk clock.Clocker) *OTPGenerator {
	return &OTPGenerator{clock: clk}
}

// NewCode returns a 6-digit numeric code, left-padded with zeros.
func (g *OTPGenerator) NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// NewSessionID returns an opaque tracking label of the form
// session_<unix>_<random suffix>. Uniqueness is best effort; the session id is
// never a security boundary.
func (g *OTPGenerator) NewSessionID() (string, error) {
	suffix := make([]byte, sessionSuffixLen)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(sessionAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate session id: %w", err)
		}
		suffix[i] = sessionAlphabet[n.Int64()]
	}
	return fmt.Sprintf("session_%d_%s", g.clock.Now().Unix(), suffix), nil
}
