package service

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
	"github.com/aussiebroadwan/clientauth/internal/auth/lock"
	"github.com/aussiebroadwan/clientauth/internal/auth/store"
	"github.com/aussiebroadwan/clientauth/pkg/cryptox"
	"github.com/aussiebroadwan/clientauth/pkg/idx"
	"github.com/aussiebroadwan/clientauth/pkg/slogx"
)

const (
	maxTxRetries = 3
	txRetryBase  = 50 * time.Millisecond
)

// revokeAllAccountTokens marks every valid record of the account expired and
// revoked in one statement. Running it twice changes nothing.
func revokeAllAccountTokens(ctx context.Context, tokens store.Tokens, accountID string, now time.Time) (int64, error) {
	valid, err := tokens.ListValidTokens(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if len(valid) == 0 {
		return 0, nil
	}

	ids := make([]string, len(valid))
	for i, t := range valid {
		ids[i] = t.ID
	}
	return tokens.RevokeTokens(ctx, ids, now)
}

// rotate supersedes every valid token of the account with a record for
// access, holding both the account lock and the account row lock. extra runs
// last in the same transaction.
func (s *AuthService) rotate(ctx context.Context, account domain.Account, access domain.SignedToken, extra func(tx store.Tx) error) error {
	unlock, err := s.locker().Lock(ctx, lock.AccountKey(account.ID))
	if err != nil {
		return err
	}
	defer unlock()

	var revoked int64
	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.LockAccount(ctx, account.ID); err != nil {
				return err
			}

			now := s.now()
			n, err := revokeAllAccountTokens(ctx, tx.Tokens(), account.ID, now)
			if err != nil {
				return err
			}
			revoked = n

			if err := tx.Tokens().CreateToken(ctx, newTokenRecord(account.ID, access, now)); err != nil {
				return err
			}
			if extra != nil {
				return extra(tx)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.Metrics.TokensRevoked(revoked)
	slogx.FromContext(ctx).Debug("tokens rotated", "account_id", account.ID, "revoked", revoked)
	return nil
}

// revokeAll is rotate without a replacement token.
func (s *AuthService) revokeAll(ctx context.Context, accountID string) (int64, error) {
	unlock, err := s.locker().Lock(ctx, lock.AccountKey(accountID))
	if err != nil {
		return 0, err
	}
	defer unlock()

	var revoked int64
	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.LockAccount(ctx, accountID); err != nil {
				return err
			}
			n, err := revokeAllAccountTokens(ctx, tx.Tokens(), accountID, s.now())
			revoked = n
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	s.Metrics.TokensRevoked(revoked)
	return revoked, nil
}

// withRetry reruns fn while it fails with store.ErrRetryable.
func (s *AuthService) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(maxTxRetries, retry.NewExponential(txRetryBase))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.Metrics.RotationRetried()
			slogx.FromContext(ctx).Debug("retrying transaction", "attempt", attempt)
		}

		err := fn(ctx)
		if errors.Is(err, store.ErrRetryable) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func newTokenRecord(accountID string, access domain.SignedToken, now time.Time) domain.TokenRecord {
	return domain.NewTokenRecord(idx.NewAt(now).String(), accountID, cryptox.FingerprintToken(access.Value), access.ExpiresAt, now)
}
