package service

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
	"github.com/aussiebroadwan/clientauth/internal/auth/lock"
	"github.com/aussiebroadwan/clientauth/internal/auth/metrics"
	"github.com/aussiebroadwan/clientauth/internal/auth/store"
	"github.com/aussiebroadwan/clientauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/clientauth/internal/auth/token"
	"github.com/aussiebroadwan/clientauth/pkg/cryptox"
	"github.com/aussiebroadwan/clientauth/pkg/jwtx"
)

const (
	testPassword = "correct horse battery staple"
	testSecret   = "JBSWY3DPEHPK3PXP"
	goodCode     = "123456"
	nextCode     = "654321"
)

type fakeSecondFactor struct{}

func (fakeSecondFactor) GenerateSecret(string) (string, error) { return testSecret, nil }

func (fakeSecondFactor) EnrollmentURI(secret, _ string) (string, error) {
	return "data:image/png;base64," + secret, nil
}

// MatchCode accepts goodCode at step 1 and nextCode at step 2.
func (fakeSecondFactor) MatchCode(secret, code string) (int64, bool) {
	if secret != testSecret {
		return 0, false
	}
	switch code {
	case goodCode:
		return 1, true
	case nextCode:
		return 2, true
	}
	return 0, false
}

// countingSecondFactor records how many codes reach the comparison.
type countingSecondFactor struct {
	fakeSecondFactor
	checked atomic.Int64
}

func (c *countingSecondFactor) MatchCode(secret, code string) (int64, bool) {
	c.checked.Add(1)
	return c.fakeSecondFactor.MatchCode(secret, code)
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(sqlite.FileDSN(filepath.Join(t.TempDir(), "auth.db")))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newCodec(t *testing.T) *token.Codec {
	t.Helper()
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    "clientauth-test",
		NumKeys:   2,
	})
	require.NoError(t, err)
	return token.NewCodec(km, token.Options{Issuer: "clientauth-test"})
}

// newService wires the service over st, which defaults to a fresh sqlite store.
func newService(t *testing.T, st store.Store) *AuthService {
	t.Helper()
	if st == nil {
		st = newTestStore(t)
	}
	hasher := cryptox.NewArgon2Hasher("test-pepper")
	return &AuthService{
		Store:        st,
		Credentials:  &PasswordCredentials{Store: st, Passwords: hasher},
		Passwords:    hasher,
		Tokens:       newCodec(t),
		SecondFactor: fakeSecondFactor{},
		Locker:       lock.NewLocal(),
		Metrics:      metrics.New(),
	}
}

func register(t *testing.T, svc *AuthService, email string, mfa bool) domain.AuthResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), RegisterRequest{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      email,
		Password:   testPassword,
		MFAEnabled: mfa,
	})
	require.NoError(t, err)
	return resp
}

func accountFor(t *testing.T, svc *AuthService, email string) domain.Account {
	t.Helper()
	a, err := svc.Store.Accounts().GetAccountByEmail(context.Background(), domain.NormalizeEmail(email))
	require.NoError(t, err)
	return a
}

func validTokens(t *testing.T, svc *AuthService, accountID string) []domain.TokenRecord {
	t.Helper()
	recs, err := svc.Store.Tokens().ListValidTokens(context.Background(), accountID)
	require.NoError(t, err)
	return recs
}

// requireOnlyValid asserts access is the single valid record of the account.
func requireOnlyValid(t *testing.T, svc *AuthService, accountID, access string) {
	t.Helper()
	recs := validTokens(t, svc, accountID)
	require.Len(t, recs, 1)
	require.Equal(t, cryptox.FingerprintToken(access), recs[0].TokenHash)
}

func bearer(token string) string { return "Bearer " + token }

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }
