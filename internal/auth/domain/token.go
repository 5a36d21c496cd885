package domain

import "time"

// TokenType of a persisted token record. Only bearer tokens exist today.
type TokenType string

const TokenTypeBearer TokenType = "BEARER"

// TokenUse distinguishes access from refresh tokens inside the signed token.
type TokenUse string

const (
	TokenUseAccess  TokenUse = "access"
	TokenUseRefresh TokenUse = "refresh"
)

// TokenRecord tracks one issued access token. Records are append-only: a
// superseded record is marked expired and revoked, never deleted.
type TokenRecord struct {
	ID        string
	AccountID string
	TokenHash string // fingerprint of the signed token
	Type      TokenType
	Expired   bool
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewTokenRecord(id, accountID, tokenHash string, expiresAt, now time.Time) TokenRecord {
	now = now.UTC()
	return TokenRecord{
		ID:        id,
		AccountID: accountID,
		TokenHash: tokenHash,
		Type:      TokenTypeBearer,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Valid is true until the record is expired or revoked.
func (t TokenRecord) Valid() bool {
	return !t.Expired && !t.Revoked
}

// SignedToken is a freshly minted token and the instant it stops verifying.
type SignedToken struct {
	Value     string
	Use       TokenUse
	ExpiresAt time.Time
}

// AuthResponse is returned by every credential exchange. Empty tokens with
// MFAEnabled set mean the second factor is still outstanding.
type AuthResponse struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	MFAEnabled     bool   `json:"mfa_enabled"`
	SecretImageURI string `json:"secret_image_uri,omitempty"`
}

// SecondFactorRequired reports the intermediate two-phase state.
func (r AuthResponse) SecondFactorRequired() bool {
	return r.MFAEnabled && r.AccessToken == ""
}
