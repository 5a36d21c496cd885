package domain

import "time"

// MFAChallenge is opened when a password check succeeds for an account with a
// second factor, and consumed by a correct code.
type MFAChallenge struct {
	ID        string
	AccountID string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

func NewMFAChallenge(id, accountID string, ttl time.Duration, now time.Time) MFAChallenge {
	now = now.UTC()
	return MFAChallenge{
		ID:        id,
		AccountID: accountID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

func (c MFAChallenge) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
