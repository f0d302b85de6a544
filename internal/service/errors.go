package service

import "errors"

// Sentinel errors returned by the core engine. Callers match them with
// errors.Is; the handler layer maps each one to a response code.
//
// ErrInvalidCredentials deliberately covers both "no such email" and "wrong
// password" so the two cases are indistinguishable to the caller. OTP failures
// are differentiated: once the password step has passed, revealing expired vs
// invalid vs absent does not aid an attacker.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = errors.New("account not found")
	ErrNoChallenge        = errors.New("no challenge issued")
	ErrChallengeExpired   = errors.New("challenge expired")
	ErrInvalidCode        = errors.New("invalid code")
	ErrDataIntegrity      = errors.New("data integrity violation")
	ErrStoreUnavailable   = errors.New("store unavailable")
)
