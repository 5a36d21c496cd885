package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
	"github.com/aussiebroadwan/clientauth/internal/auth/store"
)

const tokenColumns = `id, account_id, token_hash, token_type, expired, revoked, expires_at, created_at, updated_at`

type tokensRepo struct {
	db querier
}

func (r *tokensRepo) CreateToken(ctx context.Context, t domain.TokenRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tokens (`+tokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.AccountID, t.TokenHash, string(t.Type), t.Expired, t.Revoked,
		t.ExpiresAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return oops.Code("TOKEN_CREATE_FAILED").With("id", t.ID).With("account_id", t.AccountID).Wrap(mapError(err))
	}
	return nil
}

func (r *tokensRepo) GetTokenByHash(ctx context.Context, hash string) (domain.TokenRecord, error) {
	t, err := scanToken(r.db.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE token_hash = $1`, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TokenRecord{}, oops.Code("TOKEN_NOT_FOUND").Wrap(store.ErrNotFound)
	}
	if err != nil {
		return domain.TokenRecord{}, oops.Code("TOKEN_GET_FAILED").Wrap(mapError(err))
	}
	return t, nil
}

func (r *tokensRepo) ListValidTokens(ctx context.Context, accountID string) ([]domain.TokenRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+tokenColumns+` FROM tokens
		 WHERE account_id = $1 AND NOT expired AND NOT revoked
		 ORDER BY created_at, id`,
		accountID,
	)
	if err != nil {
		return nil, oops.Code("TOKEN_LIST_FAILED").With("account_id", accountID).Wrap(mapError(err))
	}
	defer rows.Close()

	var out []domain.TokenRecord
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, oops.Code("TOKEN_SCAN_FAILED").With("account_id", accountID).Wrap(err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TOKEN_LIST_FAILED").With("account_id", accountID).Wrap(mapError(err))
	}
	return out, nil
}

func (r *tokensRepo) RevokeTokens(ctx context.Context, ids []string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE tokens SET expired = TRUE, revoked = TRUE, updated_at = $1 WHERE id = ANY($2)`,
		now, ids,
	)
	if err != nil {
		return 0, oops.Code("TOKEN_REVOKE_FAILED").With("count", len(ids)).Wrap(mapError(err))
	}
	return tag.RowsAffected(), nil
}

func (r *tokensRepo) ExpireStaleTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE tokens SET expired = TRUE, updated_at = $1 WHERE NOT expired AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, oops.Code("TOKEN_EXPIRE_FAILED").Wrap(mapError(err))
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (domain.TokenRecord, error) {
	var (
		t   domain.TokenRecord
		typ string
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.TokenHash, &typ, &t.Expired, &t.Revoked,
		&t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.TokenRecord{}, err
	}
	t.Type = domain.TokenType(typ)
	return t, nil
}
