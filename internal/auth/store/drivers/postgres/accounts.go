package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/oops"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
	"github.com/aussiebroadwan/clientauth/internal/auth/store"
)

const accountColumns = `id, first_name, last_name, email, password_hash, role,
	mfa_enabled, mfa_secret, disabled, created_at, updated_at`

type accountsRepo struct {
	db querier
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.FirstName, a.LastName, a.Email, a.PasswordHash, string(a.Role),
		a.MFAEnabled, nullString(a.MFASecret), a.Disabled, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").With("id", a.ID).Wrap(mapError(err))
	}
	return nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, oops.Code("ACCOUNT_NOT_FOUND").With("id", id).Wrap(store.ErrNotFound)
	}
	if err != nil {
		return domain.Account{}, oops.Code("ACCOUNT_GET_FAILED").With("id", id).Wrap(mapError(err))
	}
	return a, nil
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, oops.Code("ACCOUNT_NOT_FOUND").Wrap(store.ErrNotFound)
	}
	if err != nil {
		return domain.Account{}, oops.Code("ACCOUNT_GET_FAILED").Wrap(mapError(err))
	}
	return a, nil
}

func (r *accountsRepo) AdvanceMFAStep(ctx context.Context, accountID string, step int64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET mfa_last_step = $2 WHERE id = $1 AND mfa_last_step < $2`,
		accountID, step,
	)
	if err != nil {
		return false, oops.Code("ACCOUNT_UPDATE_FAILED").With("id", accountID).Wrap(mapError(err))
	}
	return tag.RowsAffected() == 1, nil
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a      domain.Account
		role   string
		secret pgtype.Text
	)
	err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash, &role,
		&a.MFAEnabled, &secret, &a.Disabled, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Account{}, err
	}
	a.Role = domain.Role(role)
	a.MFASecret = secret.String
	return a, nil
}

func nullString(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
