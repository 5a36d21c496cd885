// Package token signs and checks the JWTs handed to clients.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
	"github.com/aussiebroadwan/clientauth/pkg/jwtx"
)

type Options struct {
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// Codec mints access and refresh tokens whose subject is the account email.
type Codec struct {
	keys *jwtx.KeyManager
	opts Options
}

func NewCodec(keys *jwtx.KeyManager, opts Options) *Codec {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = jwtx.DefaultAccessTokenTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = jwtx.DefaultRefreshTokenTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Codec{keys: keys, opts: opts}
}

func (c *Codec) Sign(account domain.Account, use domain.TokenUse) (domain.SignedToken, error) {
	var ttl time.Duration
	switch use {
	case domain.TokenUseAccess:
		ttl = c.opts.AccessTTL
	case domain.TokenUseRefresh:
		ttl = c.opts.RefreshTTL
	default:
		return domain.SignedToken{}, fmt.Errorf("token: unknown use %q", use)
	}

	claims := jwtx.NewClaims(jwtx.ClaimsParams{
		Subject:   account.Email,
		AccountID: account.ID,
		Role:      string(account.Role),
		Use:       string(use),
		Issuer:    c.opts.Issuer,
		Audience:  c.opts.Audience,
		TTL:       ttl,
	}, c.opts.Now())

	value, err := c.keys.Signer().Sign(claims)
	if err != nil {
		return domain.SignedToken{}, fmt.Errorf("token: sign: %w", err)
	}
	return domain.SignedToken{Value: value, Use: use, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// ExtractSubject returns the email a token was issued to. Tokens that fail
// signature or time checks yield a domain.ErrToken error.
func (c *Codec) ExtractSubject(token string) (string, error) {
	claims, err := c.keys.Verifier().Verify(token)
	if err != nil {
		return "", domain.TokenError(tokenErrorMessage(err), err)
	}
	if claims.Subject == "" {
		return "", domain.TokenError("token has no subject", jwtx.ErrInvalidClaim)
	}
	return claims.Subject, nil
}

// IsValid reports whether token verifies, carries the wanted use and was
// issued to account.
func (c *Codec) IsValid(token string, account domain.Account, use domain.TokenUse) bool {
	claims, err := c.keys.Verifier().Verify(token)
	if err != nil {
		return false
	}
	if claims.ValidateUse(string(use)) != nil {
		return false
	}
	return claims.Subject == account.Email && claims.AccountID == account.ID
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return "token expired"
	case errors.Is(err, jwtx.ErrMalformed):
		return "malformed token"
	default:
		return "invalid token"
	}
}
