package models

// OTPChallenge is the stored form of an issued one-time passcode. Only the
// bcrypt digest of the code is kept; the plaintext is returned to the caller
// once at issue time and never persisted.
//
// Timestamps are milliseconds since the Unix epoch. ExpiresAt is always
// CreatedAt plus the configured TTL.
type OTPChallenge struct {
	CodeHash  string `json:"code_hash" dynamodbav:"otp_code_hash"`
	SessionID string `json:"session_id" dynamodbav:"otp_session_id"`
	CreatedAt int64  `json:"created_at" dynamodbav:"otp_created_at"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"otp_expires_at"`
}

// ExpiredAt reports whether the challenge is past its lifetime at the given
// moment (milliseconds since epoch). Expiry is inclusive: a verify attempt at
// exactly ExpiresAt is already too late.
func (c *OTPChallenge) ExpiredAt(nowMillis int64) bool {
	return nowMillis >= c.ExpiresAt
}
