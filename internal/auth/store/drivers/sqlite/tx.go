package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/clientauth/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Accounts() store.Accounts           { return &accountsRepo{db: t.tx} }
func (t *txStore) Tokens() store.Tokens               { return &tokensRepo{db: t.tx} }
func (t *txStore) MFAChallenges() store.MFAChallenges { return &challengesRepo{db: t.tx} }

// LockAccount performs a no-op write on the account row. SQLite has a single
// writer, so once this succeeds no other transaction can write until we end.
func (t *txStore) LockAccount(ctx context.Context, accountID string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE accounts SET updated_at = updated_at WHERE id = ?`, accountID)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
