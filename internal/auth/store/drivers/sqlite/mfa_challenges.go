package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
)

type challengesRepo struct {
	db dbtx
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.MFAChallenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mfa_challenges (id, account_id, attempts, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.AccountID, c.Attempts, c.ExpiresAt.UTC(), c.CreatedAt.UTC(),
	)
	return mapError(err)
}

func (r *challengesRepo) GetActiveChallenge(ctx context.Context, accountID string, now time.Time) (domain.MFAChallenge, error) {
	var c domain.MFAChallenge
	err := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, attempts, expires_at, created_at FROM mfa_challenges
		 WHERE account_id = ? AND expires_at > ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		accountID, now.UTC(),
	).Scan(&c.ID, &c.AccountID, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		return domain.MFAChallenge{}, mapError(err)
	}
	return c, nil
}

func (r *challengesRepo) ReserveChallengeAttempt(ctx context.Context, id string, maxAttempts int) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE mfa_challenges SET attempts = attempts + 1
		 WHERE id = ? AND attempts < ?
		 RETURNING attempts`,
		id, maxAttempts,
	).Scan(&attempts)
	return attempts, mapError(err)
}

func (r *challengesRepo) DeleteAccountChallenges(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE account_id = ?`, accountID)
	return mapError(err)
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mfa_challenges WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}
