package models

import "time"

// Role classifies an account. It is an explicit stored field; admins skip the
// OTP step entirely.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type Account struct {
	ID           string    `json:"id" dynamodbav:"-"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Role         Role      `json:"role" dynamodbav:"role"`
	CreatedAt    time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

func (a *Account) GetPK() string {
	return "ACCOUNT#" + a.ID
}

func (a *Account) GetSK() string {
	return "METADATA"
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}
