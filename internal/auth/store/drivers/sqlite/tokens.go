package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
)

const tokenColumns = `id, account_id, token_hash, token_type, expired, revoked, expires_at, created_at, updated_at`

type tokensRepo struct {
	db dbtx
}

func (r *tokensRepo) CreateToken(ctx context.Context, t domain.TokenRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.TokenHash, string(t.Type), t.Expired, t.Revoked,
		t.ExpiresAt.UTC(), t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	return mapError(err)
}

func (r *tokensRepo) GetTokenByHash(ctx context.Context, hash string) (domain.TokenRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE token_hash = ?`, hash)
	return scanToken(row)
}

func (r *tokensRepo) ListValidTokens(ctx context.Context, accountID string) ([]domain.TokenRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM tokens
		 WHERE account_id = ? AND expired = 0 AND revoked = 0
		 ORDER BY created_at, id`,
		accountID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []domain.TokenRecord
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, mapError(rows.Err())
}

func (r *tokensRepo) RevokeTokens(ctx context.Context, ids []string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, now.UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET expired = 1, revoked = 1, updated_at = ?
		 WHERE id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

func (r *tokensRepo) ExpireStaleTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET expired = 1, updated_at = ?
		 WHERE expired = 0 AND expires_at <= ?`,
		now.UTC(), now.UTC(),
	)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(row scanner) (domain.TokenRecord, error) {
	var (
		t   domain.TokenRecord
		typ string
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.TokenHash, &typ, &t.Expired, &t.Revoked,
		&t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.TokenRecord{}, mapError(err)
	}
	t.Type = domain.TokenType(typ)
	return t, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
