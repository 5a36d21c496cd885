package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
	"github.com/aussiebroadwan/clientauth/internal/auth/lock"
	"github.com/aussiebroadwan/clientauth/internal/auth/metrics"
	"github.com/aussiebroadwan/clientauth/internal/auth/store"
	"github.com/aussiebroadwan/clientauth/pkg/cryptox"
	"github.com/aussiebroadwan/clientauth/pkg/httpx"
	"github.com/aussiebroadwan/clientauth/pkg/idx"
	"github.com/aussiebroadwan/clientauth/pkg/slogx"
)

const (
	DefaultChallengeTTL   = 5 * time.Minute
	DefaultMaxMFAAttempts = 5
)

// ErrRefreshRejected is returned when a refresh request carries no bearer
// token or one that is not a valid refresh token for its subject. Nothing is
// written in that case.
var ErrRefreshRejected = errors.New("refresh_rejected")

// errChallengeConsumed aborts a verification whose challenge was used by a
// concurrent request.
var errChallengeConsumed = errors.New("mfa challenge already consumed")

// errCodeReused aborts a verification whose code was already accepted for
// the same or a later time step.
var errCodeReused = errors.New("mfa code already used")

type RegisterRequest struct {
	FirstName  string
	LastName   string
	Email      string
	Password   string
	MFAEnabled bool
}

// AuthService registers accounts and runs every credential exchange. All
// state is in Store, so one value is safe for concurrent use.
type AuthService struct {
	Store        store.Store
	Credentials  CredentialChecker
	Passwords    PasswordHasher
	Tokens       TokenCodec
	SecondFactor SecondFactorProvider

	// Locker serialises token rotation per account. Defaults to an
	// in-process lock, which is only enough for a single replica.
	Locker  lock.Locker
	Metrics *metrics.Metrics

	ChallengeTTL   time.Duration
	MaxMFAAttempts int
	Now            func() time.Time

	localOnce sync.Once
	local     *lock.Local
}

// Register creates an account and signs it in. With MFA requested the
// response also carries the enrollment image for the new secret.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (resp domain.AuthResponse, err error) {
	ctx, end := s.begin(ctx, "register")
	defer func() { end(resp, err) }()
	l := slogx.FromContext(ctx)

	email := domain.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return domain.AuthResponse{}, domain.ValidationError("email and password are required")
	}

	hash, err := s.Passwords.Hash(req.Password)
	if err != nil {
		return domain.AuthResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	account := domain.NewAccount(idx.NewAt(now).String(), req.FirstName, req.LastName, email, hash, now)

	if req.MFAEnabled {
		secret, err := s.SecondFactor.GenerateSecret(email)
		if err != nil {
			return domain.AuthResponse{}, fmt.Errorf("generate mfa secret: %w", err)
		}
		account.EnableMFA(secret)

		resp.SecretImageURI, err = s.SecondFactor.EnrollmentURI(secret, email)
		if err != nil {
			return domain.AuthResponse{}, fmt.Errorf("mfa enrollment uri: %w", err)
		}
	}

	access, refresh, err := s.signPair(account)
	if err != nil {
		return domain.AuthResponse{}, err
	}

	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Accounts().CreateAccount(ctx, account); err != nil {
				return err
			}
			return tx.Tokens().CreateToken(ctx, newTokenRecord(account.ID, access, now))
		})
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		l.Info("registration for existing email rejected")
		return domain.AuthResponse{}, domain.ConflictError("email is already registered")
	}
	if err != nil {
		return domain.AuthResponse{}, fmt.Errorf("create account: %w", err)
	}

	l.Info("account registered", "account_id", account.ID, "mfa_enabled", account.MFAEnabled)
	resp.AccessToken = access.Value
	resp.RefreshToken = refresh.Value
	resp.MFAEnabled = account.MFAEnabled
	return resp, nil
}

// Authenticate checks email and password. Accounts with a second factor get
// an empty response with MFAEnabled set and must finish with VerifyCode.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (resp domain.AuthResponse, err error) {
	ctx, end := s.begin(ctx, "authenticate")
	defer func() { end(resp, err) }()
	l := slogx.FromContext(ctx)

	checked, err := s.Credentials.VerifyCredentials(ctx, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			l.Info("authentication failed")
		}
		return domain.AuthResponse{}, err
	}

	account, err := s.accountByEmail(ctx, checked.Email)
	if err != nil {
		return domain.AuthResponse{}, err
	}

	if account.MFAEnabled {
		if err := s.openChallenge(ctx, account.ID); err != nil {
			return domain.AuthResponse{}, err
		}
		l.Info("second factor required", "account_id", account.ID)
		return domain.AuthResponse{MFAEnabled: true}, nil
	}

	access, refresh, err := s.signPair(account)
	if err != nil {
		return domain.AuthResponse{}, err
	}
	if err := s.rotate(ctx, account, access, nil); err != nil {
		return domain.AuthResponse{}, fmt.Errorf("rotate tokens: %w", err)
	}

	l.Info("account authenticated", "account_id", account.ID)
	return domain.AuthResponse{AccessToken: access.Value, RefreshToken: refresh.Value}, nil
}

// VerifyCode completes an authentication that stopped at the second factor.
// A missing or exhausted challenge and a wrong code fail the same way.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) (resp domain.AuthResponse, err error) {
	ctx, end := s.begin(ctx, "verify_code")
	defer func() { end(resp, err) }()
	l := slogx.FromContext(ctx)

	account, err := s.accountByEmail(ctx, email)
	if err != nil {
		return domain.AuthResponse{}, err
	}
	codeNotCorrect := domain.AuthenticationError(domain.MsgCodeNotCorrect)
	if !account.MFAEnabled || account.Disabled {
		return domain.AuthResponse{}, codeNotCorrect
	}

	challenge, err := s.Store.MFAChallenges().GetActiveChallenge(ctx, account.ID, s.now())
	if errors.Is(err, store.ErrNotFound) {
		l.Info("code submitted without an open challenge", "account_id", account.ID)
		return domain.AuthResponse{}, codeNotCorrect
	}
	if err != nil {
		return domain.AuthResponse{}, fmt.Errorf("load mfa challenge: %w", err)
	}

	// The attempt is reserved before the code is looked at, so concurrent
	// guesses cannot exceed the cap.
	maxAttempts := s.maxMFAAttempts()
	attempts, err := s.Store.MFAChallenges().ReserveChallengeAttempt(ctx, challenge.ID, maxAttempts)
	if errors.Is(err, store.ErrNotFound) {
		s.dropChallenges(ctx, account.ID)
		return domain.AuthResponse{}, codeNotCorrect
	}
	if err != nil {
		return domain.AuthResponse{}, fmt.Errorf("reserve mfa attempt: %w", err)
	}

	step, ok := s.SecondFactor.MatchCode(account.MFASecret, code)
	if !ok {
		if attempts >= maxAttempts {
			s.dropChallenges(ctx, account.ID)
		}
		l.Warn("mfa code rejected", "account_id", account.ID, "attempts", attempts)
		return domain.AuthResponse{}, codeNotCorrect
	}

	access, refresh, err := s.signPair(account)
	if err != nil {
		return domain.AuthResponse{}, err
	}

	err = s.rotate(ctx, account, access, func(tx store.Tx) error {
		if _, err := tx.MFAChallenges().GetActiveChallenge(ctx, account.ID, s.now()); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errChallengeConsumed
			}
			return err
		}
		advanced, err := tx.Accounts().AdvanceMFAStep(ctx, account.ID, step)
		if err != nil {
			return err
		}
		if !advanced {
			return errCodeReused
		}
		return tx.MFAChallenges().DeleteAccountChallenges(ctx, account.ID)
	})
	switch {
	case errors.Is(err, errChallengeConsumed):
		return domain.AuthResponse{}, codeNotCorrect
	case errors.Is(err, errCodeReused):
		l.Warn("mfa code replayed", "account_id", account.ID, "step", step)
		return domain.AuthResponse{}, codeNotCorrect
	case err != nil:
		return domain.AuthResponse{}, fmt.Errorf("rotate tokens: %w", err)
	}

	l.Info("second factor verified", "account_id", account.ID)
	return domain.AuthResponse{AccessToken: access.Value, RefreshToken: refresh.Value, MFAEnabled: true}, nil
}

// RefreshToken exchanges the refresh token in an Authorization header value
// for a new access token. The refresh token itself is returned unchanged.
func (s *AuthService) RefreshToken(ctx context.Context, authorization string) (resp domain.AuthResponse, err error) {
	ctx, end := s.begin(ctx, "refresh_token")
	defer func() { end(resp, err) }()
	l := slogx.FromContext(ctx)

	raw, ok := httpx.BearerToken(authorization)
	if !ok {
		return domain.AuthResponse{}, ErrRefreshRejected
	}

	email, err := s.Tokens.ExtractSubject(raw)
	if err != nil {
		return domain.AuthResponse{}, err
	}

	account, err := s.accountByEmail(ctx, email)
	if err != nil {
		return domain.AuthResponse{}, err
	}

	if account.Disabled || !s.Tokens.IsValid(raw, account, domain.TokenUseRefresh) {
		l.Info("refresh token rejected", "account_id", account.ID)
		return domain.AuthResponse{}, ErrRefreshRejected
	}

	access, err := s.sign(account, domain.TokenUseAccess)
	if err != nil {
		return domain.AuthResponse{}, err
	}
	if err := s.rotate(ctx, account, access, nil); err != nil {
		return domain.AuthResponse{}, fmt.Errorf("rotate tokens: %w", err)
	}

	return domain.AuthResponse{AccessToken: access.Value, RefreshToken: raw}, nil
}

// Logout revokes every valid token of the account.
func (s *AuthService) Logout(ctx context.Context, accountID string) (err error) {
	ctx, end := s.begin(ctx, "logout")
	defer func() { end(domain.AuthResponse{}, err) }()

	n, err := s.revokeAll(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFoundError("account not found", err)
	}
	if err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	slogx.FromContext(ctx).Info("account logged out", "account_id", accountID, "revoked", n)
	return nil
}

// ValidateAccessToken returns the account an access token belongs to, as
// long as the token verifies and its record has not been superseded.
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (domain.Account, error) {
	email, err := s.Tokens.ExtractSubject(token)
	if err != nil {
		return domain.Account{}, err
	}

	account, err := s.Store.Accounts().GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, domain.TokenError("unknown subject", err)
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("load account: %w", err)
	}
	if account.Disabled || !s.Tokens.IsValid(token, account, domain.TokenUseAccess) {
		return domain.Account{}, domain.TokenError("invalid token", nil)
	}

	rec, err := s.Store.Tokens().GetTokenByHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, domain.TokenError("unknown token", err)
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("load token record: %w", err)
	}
	if !rec.Valid() || rec.AccountID != account.ID {
		return domain.Account{}, domain.TokenError("token revoked", nil)
	}
	return account, nil
}

// Account returns the account with the given id.
func (s *AuthService) Account(ctx context.Context, id string) (domain.Account, error) {
	account, err := s.Store.Accounts().GetAccountByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, domain.NotFoundError("account not found", err)
	}
	return account, err
}

func (s *AuthService) accountByEmail(ctx context.Context, email string) (domain.Account, error) {
	account, err := s.Store.Accounts().GetAccountByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, domain.NotFoundError("account not found", err)
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("load account: %w", err)
	}
	return account, nil
}

// openChallenge replaces any pending challenge of the account.
func (s *AuthService) openChallenge(ctx context.Context, accountID string) error {
	now := s.now()
	challenge := domain.NewMFAChallenge(idx.NewAt(now).String(), accountID, s.challengeTTL(), now)

	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.MFAChallenges().DeleteAccountChallenges(ctx, accountID); err != nil {
				return err
			}
			return tx.MFAChallenges().CreateChallenge(ctx, challenge)
		})
	})
	if err != nil {
		return fmt.Errorf("open mfa challenge: %w", err)
	}
	return nil
}

func (s *AuthService) signPair(account domain.Account) (access, refresh domain.SignedToken, err error) {
	if access, err = s.sign(account, domain.TokenUseAccess); err != nil {
		return
	}
	refresh, err = s.sign(account, domain.TokenUseRefresh)
	return
}

func (s *AuthService) sign(account domain.Account, use domain.TokenUse) (domain.SignedToken, error) {
	t, err := s.Tokens.Sign(account, use)
	if err != nil {
		return domain.SignedToken{}, fmt.Errorf("sign %s token: %w", use, err)
	}
	s.Metrics.TokenIssued(string(use))
	return t, nil
}

func (s *AuthService) locker() lock.Locker {
	if s.Locker != nil {
		return s.Locker
	}
	s.localOnce.Do(func() { s.local = lock.NewLocal() })
	return s.local
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AuthService) challengeTTL() time.Duration {
	if s.ChallengeTTL > 0 {
		return s.ChallengeTTL
	}
	return DefaultChallengeTTL
}

// dropChallenges deletes the account's challenges after the attempt cap is
// hit. Failure only delays cleanup until housekeeping.
func (s *AuthService) dropChallenges(ctx context.Context, accountID string) {
	if err := s.Store.MFAChallenges().DeleteAccountChallenges(ctx, accountID); err != nil {
		slogx.FromContext(ctx).Error("failed to delete exhausted mfa challenge", "error", err)
	}
}

func (s *AuthService) maxMFAAttempts() int {
	if s.MaxMFAAttempts > 0 {
		return s.MaxMFAAttempts
	}
	return DefaultMaxMFAAttempts
}
