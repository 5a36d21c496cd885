package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrRetryable marks a transaction that lost a race (serialization
	// failure, deadlock, busy database) and may succeed if run again.
	ErrRetryable = errors.New("store: retryable conflict")
)

// Repos are the sub-repositories shared by Store and Tx.
type Repos interface {
	Accounts() Accounts
	Tokens() Tokens
	MFAChallenges() MFAChallenges
}

// Store is the root data access interface implemented by the sqlite and
// postgres drivers. Transactions hand out a Tx rather than another Store so
// nested transactions cannot be expressed.
type Store interface {
	Repos

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST Commit or Rollback.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

type Tx interface {
	Repos

	// LockAccount takes a write lock on the account row that is held until the
	// transaction ends, serialising token rotation for that account. Returns
	// ErrNotFound when the account does not exist.
	LockAccount(ctx context.Context, accountID string) error

	Commit() error
	Rollback() error
}

type Accounts interface {
	// CreateAccount returns ErrAlreadyExists when the email is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail expects a normalised email.
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	// AdvanceMFAStep records step as the last TOTP time step accepted for the
	// account. It reports false, and changes nothing, unless step is later
	// than the recorded one.
	AdvanceMFAStep(ctx context.Context, accountID string, step int64) (bool, error)
}

type Tokens interface {
	CreateToken(ctx context.Context, t domain.TokenRecord) error

	GetTokenByHash(ctx context.Context, hash string) (domain.TokenRecord, error)

	// ListValidTokens returns the account's records that are neither expired
	// nor revoked, oldest first.
	ListValidTokens(ctx context.Context, accountID string) ([]domain.TokenRecord, error)

	// RevokeTokens marks the given records expired and revoked.
	RevokeTokens(ctx context.Context, ids []string, now time.Time) (int64, error)

	// ExpireStaleTokens marks valid records whose expires_at has passed as
	// expired. Rows are never deleted.
	ExpireStaleTokens(ctx context.Context, now time.Time) (int64, error)
}

type MFAChallenges interface {
	CreateChallenge(ctx context.Context, c domain.MFAChallenge) error

	// GetActiveChallenge returns the newest unexpired challenge of the account.
	GetActiveChallenge(ctx context.Context, accountID string, now time.Time) (domain.MFAChallenge, error)

	// ReserveChallengeAttempt counts one attempt against the challenge and
	// returns the new count. It returns ErrNotFound when the challenge is gone
	// or already holds maxAttempts attempts.
	ReserveChallengeAttempt(ctx context.Context, id string, maxAttempts int) (int, error)

	DeleteAccountChallenges(ctx context.Context, accountID string) error

	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}
