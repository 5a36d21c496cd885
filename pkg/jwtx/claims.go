package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Token uses carried in the "use" claim. A refresh token is never accepted
// where an access token is expected and vice versa.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Claims issued by the auth service. The subject is the account email.
type Claims struct {
	jwt.RegisteredClaims

	Use       string `json:"use"`
	AccountID string `json:"aid,omitempty"`
	Role      string `json:"role,omitempty"`
}

// ClaimsParams holds what varies between issued tokens.
type ClaimsParams struct {
	Subject   string
	AccountID string
	Role      string
	Use       string
	Issuer    string
	Audience  []string
	TTL       time.Duration
}

// NewClaims stamps p at now. Every token gets a random jti so two tokens for
// the same account minted in the same second still differ.
func NewClaims(p ClaimsParams, now time.Time) Claims {
	now = now.UTC().Truncate(time.Second)
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings(p.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.TTL)),
			ID:        NewJTI(),
		},
		Use:       p.Use,
		AccountID: p.AccountID,
		Role:      p.Role,
	}
}

// NewJTI returns 160 random bits, base64url encoded.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer is a no-op when expected is empty.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected != "" && c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience requires at least one of expected, a no-op when empty.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateTimes checks exp and nbf against now, allowing leeway for clock skew.
func (c *Claims) ValidateTimes(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt == nil {
		return ErrInvalidClaim
	}
	if !now.Before(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}

// ValidateUse requires the "use" claim to equal want.
func (c *Claims) ValidateUse(want string) error {
	if c.Use != want {
		return ErrWrongUse
	}
	return nil
}
