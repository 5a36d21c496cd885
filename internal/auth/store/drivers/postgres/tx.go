package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/aussiebroadwan/clientauth/internal/auth/store"
)

// txStore binds the context the transaction was started with, since
// store.Tx ends transactions without one.
type txStore struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *txStore) Commit() error   { return t.tx.Commit(t.ctx) }
func (t *txStore) Rollback() error { return t.tx.Rollback(t.ctx) }

func (t *txStore) Accounts() store.Accounts           { return &accountsRepo{db: t.tx} }
func (t *txStore) Tokens() store.Tokens               { return &tokensRepo{db: t.tx} }
func (t *txStore) MFAChallenges() store.MFAChallenges { return &challengesRepo{db: t.tx} }

// LockAccount holds a row lock on the account until the transaction ends.
func (t *txStore) LockAccount(ctx context.Context, accountID string) error {
	var id string
	err := t.tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("ACCOUNT_NOT_FOUND").With("account_id", accountID).Wrap(store.ErrNotFound)
	}
	if err != nil {
		return oops.Code("ACCOUNT_LOCK_FAILED").With("account_id", accountID).Wrap(mapError(err))
	}
	return nil
}
