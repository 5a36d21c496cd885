package service

import (
	"context"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
)

// PasswordHasher derives and checks password digests.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
}

// CredentialChecker verifies an email/password pair. Any mismatch, including
// an unknown or disabled account, is a domain.ErrAuthentication error.
type CredentialChecker interface {
	VerifyCredentials(ctx context.Context, email, password string) (domain.Account, error)
}

// TokenCodec mints and checks signed tokens bound to an account email.
type TokenCodec interface {
	Sign(account domain.Account, use domain.TokenUse) (domain.SignedToken, error)

	// ExtractSubject returns a domain.ErrToken error for tokens that do not
	// verify.
	ExtractSubject(token string) (string, error)

	IsValid(token string, account domain.Account, use domain.TokenUse) bool
}

// SecondFactorProvider is the TOTP second factor.
type SecondFactorProvider interface {
	GenerateSecret(accountName string) (string, error)
	EnrollmentURI(secret, accountName string) (string, error)
	// MatchCode returns the time step code matched for secret.
	MatchCode(secret, code string) (step int64, ok bool)
}
