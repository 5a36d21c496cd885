package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
)

const accountColumns = `id, first_name, last_name, email, password_hash, role,
	mfa_enabled, mfa_secret, disabled, created_at, updated_at`

type accountsRepo struct {
	db dbtx
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.FirstName, a.LastName, a.Email, a.PasswordHash, string(a.Role),
		a.MFAEnabled, nullString(a.MFASecret), a.Disabled, a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	return mapError(err)
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
}

func (r *accountsRepo) AdvanceMFAStep(ctx context.Context, accountID string, step int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET mfa_last_step = ? WHERE id = ? AND mfa_last_step < ?`,
		step, accountID, step,
	)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError(err)
	}
	return n == 1, nil
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var (
		a      domain.Account
		role   string
		secret sql.NullString
	)
	err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash, &role,
		&a.MFAEnabled, &secret, &a.Disabled, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Account{}, mapError(err)
	}
	a.Role = domain.Role(role)
	a.MFASecret = secret.String
	return a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
