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

type challengesRepo struct {
	db querier
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.MFAChallenge) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO mfa_challenges (id, account_id, attempts, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.AccountID, c.Attempts, c.ExpiresAt, c.CreatedAt,
	)
	if err != nil {
		return oops.Code("CHALLENGE_CREATE_FAILED").With("account_id", c.AccountID).Wrap(mapError(err))
	}
	return nil
}

func (r *challengesRepo) GetActiveChallenge(ctx context.Context, accountID string, now time.Time) (domain.MFAChallenge, error) {
	var c domain.MFAChallenge
	err := r.db.QueryRow(ctx,
		`SELECT id, account_id, attempts, expires_at, created_at FROM mfa_challenges
		 WHERE account_id = $1 AND expires_at > $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		accountID, now,
	).Scan(&c.ID, &c.AccountID, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MFAChallenge{}, oops.Code("CHALLENGE_NOT_FOUND").With("account_id", accountID).Wrap(store.ErrNotFound)
	}
	if err != nil {
		return domain.MFAChallenge{}, oops.Code("CHALLENGE_GET_FAILED").With("account_id", accountID).Wrap(mapError(err))
	}
	return c, nil
}

func (r *challengesRepo) ReserveChallengeAttempt(ctx context.Context, id string, maxAttempts int) (int, error) {
	var attempts int
	err := r.db.QueryRow(ctx,
		`UPDATE mfa_challenges SET attempts = attempts + 1
		 WHERE id = $1 AND attempts < $2
		 RETURNING attempts`,
		id, maxAttempts,
	).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("CHALLENGE_NOT_FOUND").With("id", id).Wrap(store.ErrNotFound)
	}
	if err != nil {
		return 0, oops.Code("CHALLENGE_UPDATE_FAILED").With("id", id).Wrap(mapError(err))
	}
	return attempts, nil
}

func (r *challengesRepo) DeleteAccountChallenges(ctx context.Context, accountID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM mfa_challenges WHERE account_id = $1`, accountID); err != nil {
		return oops.Code("CHALLENGE_DELETE_FAILED").With("account_id", accountID).Wrap(mapError(err))
	}
	return nil
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM mfa_challenges WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("CHALLENGE_DELETE_FAILED").Wrap(mapError(err))
	}
	return tag.RowsAffected(), nil
}
