package domain

import (
	"strings"
	"time"
)

// Role is a coarse tag carried in tokens. It grants nothing by itself.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Account is a registered account holder.
type Account struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string // unique, lower-cased
	PasswordHash string // argon2id PHC string
	Role         Role
	MFAEnabled   bool
	MFASecret    string // base32 TOTP secret, set iff MFAEnabled
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount builds an account with the USER role and second factor off.
func NewAccount(id, firstName, lastName, email, passwordHash string, now time.Time) Account {
	now = now.UTC()
	return Account{
		ID:           id,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// EnableMFA switches the second factor on with secret.
func (a *Account) EnableMFA(secret string) {
	a.MFAEnabled = true
	a.MFASecret = secret
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
