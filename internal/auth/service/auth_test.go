package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
	"github.com/aussiebroadwan/clientauth/internal/auth/store"
)

func TestRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, nil)

	resp := register(t, svc, "  Ada@Example.com ", false)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.False(t, resp.MFAEnabled)
	assert.Empty(t, resp.SecretImageURI)

	a := accountFor(t, svc, "ada@example.com")
	assert.Equal(t, "ada@example.com", a.Email)
	assert.Equal(t, domain.RoleUser, a.Role)
	assert.NotEqual(t, testPassword, a.PasswordHash)
	requireOnlyValid(t, svc, a.ID, resp.AccessToken)

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{Email: "ADA@example.com", Password: "other"})
		require.ErrorIs(t, err, domain.ErrConflict)
		requireOnlyValid(t, svc, a.ID, resp.AccessToken)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Register(ctx, RegisterRequest{Email: "x@example.com"})
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestRegister_WithMFA(t *testing.T) {
	t.Parallel()
	svc := newService(t, nil)

	resp := register(t, svc, "mfa@example.com", true)
	assert.True(t, resp.MFAEnabled)
	assert.Equal(t, "data:image/png;base64,"+testSecret, resp.SecretImageURI)
	assert.NotEmpty(t, resp.AccessToken)

	a := accountFor(t, svc, "mfa@example.com")
	assert.True(t, a.MFAEnabled)
	assert.Equal(t, testSecret, a.MFASecret)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, nil)
	reg := register(t, svc, "ada@example.com", false)
	a := accountFor(t, svc, "ada@example.com")

	resp, err := svc.Authenticate(ctx, "ADA@example.com", testPassword)
	require.NoError(t, err)
	assert.False(t, resp.MFAEnabled)
	assert.NotEqual(t, reg.AccessToken, resp.AccessToken)
	requireOnlyValid(t, svc, a.ID, resp.AccessToken)

	_, err = svc.ValidateAccessToken(ctx, reg.AccessToken)
	require.ErrorIs(t, err, domain.ErrToken, "registration token was revoked")

	got, err := svc.ValidateAccessToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestAuthenticate_Rejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, nil)
	reg := register(t, svc, "ada@example.com", true)
	a := accountFor(t, svc, "ada@example.com")

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "ada@example.com", "nope"},
		{"unknown email", "ghost@example.com", testPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tt.email, tt.password)
			require.ErrorIs(t, err, domain.ErrAuthentication)

			var de *domain.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, domain.MsgInvalidCredentials, de.Message)
		})
	}

	// Nothing changed and no challenge was opened.
	requireOnlyValid(t, svc, a.ID, reg.AccessToken)
	_, err := svc.Store.MFAChallenges().GetActiveChallenge(ctx, a.ID, time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuthenticate_DisabledAccount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	svc := newService(t, st)

	hash, err := svc.Passwords.Hash(testPassword)
	require.NoError(t, err)
	a := domain.NewAccount("01DISABLED", "Dis", "Abled", "off@example.com", hash, time.Now())
	a.Disabled = true
	require.NoError(t, st.Accounts().CreateAccount(ctx, a))

	_, err = svc.Authenticate(ctx, "off@example.com", testPassword)
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestAuthenticate_MFARequired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, nil)
	reg := register(t, svc, "mfa@example.com", true)
	a := accountFor(t, svc, "mfa@example.com")

	resp, err := svc.Authenticate(ctx, "mfa@example.com", testPassword)
	require.NoError(t, err)
	assert.True(t, resp.SecondFactorRequired())
	assert.Empty(t, resp.AccessToken)
	assert.Empty(t, resp.RefreshToken)

	// No token issued or revoked.
	requireOnlyValid(t, svc, a.ID, reg.AccessToken)

	c, err := svc.Store.MFAChallenges().GetActiveChallenge(ctx, a.ID, time.Now())
	require.NoError(t, err)
	assert.Zero(t, c.Attempts)
}

func TestVerifyCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, nil)
	register(t, svc, "mfa@example.com", true)
	a := accountFor(t, svc, "mfa@example.com")

	t.Run("without challenge", func(t *testing.T) {
		_, err := svc.VerifyCode(ctx, "mfa@example.com", goodCode)
		require.ErrorIs(t, err, domain.ErrAuthentication)
	})

	_, err := svc.Authenticate(ctx, "mfa@example.com", testPassword)
	require.NoError(t, err)

	t.Run("wrong code", func(t *testing.T) {
		_, err := svc.VerifyCode(ctx, "mfa@example.com", "000000")
		require.ErrorIs(t, err, domain.ErrAuthentication)

		var de *domain.Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, domain.MsgCodeNotCorrect, de.Message)

		c, err := svc.Store.MFAChallenges().GetActiveChallenge(ctx, a.ID, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, c.Attempts)
	})

	t.Run("correct code", func(t *testing.T) {
		resp, err := svc.VerifyCode(ctx, "MFA@example.com", goodCode)
		require.NoError(t, err)
		assert.True(t, resp.MFAEnabled)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		requireOnlyValid(t, svc, a.ID, resp.AccessToken)
	})

	t.Run("challenge is single use", func(t *testing.T) {
		_, err := svc.VerifyCode(ctx, "mfa@example.com", goodCode)
		require.ErrorIs(t, err, domain.ErrAuthentication)
	})
}

func TestVerifyCode_UnknownEmail(t *testing.T) {
	t.Parallel()
	svc := newService(t, nil)

	_, err := svc.VerifyCode(context.Background(), "ghost@example.com", goodCode)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestVerifyCode_AccountWithoutMFA(t *testing.T) {
	t.Parallel()
	svc := newService(t, nil)
	register(t, svc, "plain@example.com", false)

	_, err := svc.VerifyCode(context.Background(), "plain@example.com", goodCode)
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestVerifyCode_AttemptsExhausted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, nil)
	svc.MaxMFAAttempts = 3
	register(t, svc, "mfa@example.com", true)

	_, err := svc.Authenticate(ctx, "mfa@example.com", testPassword)
	require.NoError(t, err)

	for range 3 {
		_, err := svc.VerifyCode(ctx, "mfa@example.com", "000000")
		require.ErrorIs(t, err, domain.ErrAuthentication)
	}

	_, err = svc.VerifyCode(ctx, "mfa@example.com", goodCode)
	require.ErrorIs(t, err, domain.ErrAuthentication, "challenge is gone after too many failures")

	// A fresh password check opens a new challenge.
	_, err = svc.Authenticate(ctx, "mfa@example.com", testPassword)
	require.NoError(t, err)
	_, err = svc.VerifyCode(ctx, "mfa@example.com", goodCode)
	require.NoError(t, err)
}

func TestVerifyCode_ConcurrentGuessesRespectCap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, nil)
	factor := &countingSecondFactor{}
	svc.SecondFactor = factor
	svc.MaxMFAAttempts = 3
	register(t, svc, "mfa@example.com", true)
	a := accountFor(t, svc, "mfa@example.com")

	_, err := svc.Authenticate(ctx, "mfa@example.com", testPassword)
	require.NoError(t, err)

	const workers = 40
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.VerifyCode(ctx, "mfa@example.com", "000000")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.ErrorIs(t, err, domain.ErrAuthentication)
		var de *domain.Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, domain.MsgCodeNotCorrect, de.Message)
	}
	assert.LessOrEqual(t, factor.checked.Load(), int64(3))

	_, err = svc.Store.MFAChallenges().GetActiveChallenge(ctx, a.ID, time.Now())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestVerifyCode_CodeIsSingleUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, nil)
	register(t, svc, "mfa@example.com", true)

	_, err := svc.Authenticate(ctx, "mfa@example.com", testPassword)
	require.NoError(t, err)
	first, err := svc.VerifyCode(ctx, "mfa@example.com", goodCode)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "mfa@example.com", testPassword)
	require.NoError(t, err)
	_, err = svc.VerifyCode(ctx, "mfa@example.com", goodCode)
	require.ErrorIs(t, err, domain.ErrAuthentication)

	// The replay leaves the session from the first verification in place.
	a := accountFor(t, svc, "mfa@example.com")
	requireOnlyValid(t, svc, a.ID, first.AccessToken)

	resp, err := svc.VerifyCode(ctx, "mfa@example.com", nextCode)
	require.NoError(t, err)
	requireOnlyValid(t, svc, a.ID, resp.AccessToken)
}

func TestVerifyCode_ChallengeExpires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := &clock{now: time.Now()}
	svc := newService(t, nil)
	svc.Now = clk.Now
	svc.ChallengeTTL = time.Minute
	register(t, svc, "mfa@example.com", true)

	_, err := svc.Authenticate(ctx, "mfa@example.com", testPassword)
	require.NoError(t, err)

	clk.now = clk.now.Add(2 * time.Minute)
	_, err = svc.VerifyCode(ctx, "mfa@example.com", goodCode)
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestRefreshToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, nil)
	reg := register(t, svc, "ada@example.com", false)
	a := accountFor(t, svc, "ada@example.com")

	t.Run("missing or non-bearer header", func(t *testing.T) {
		for _, header := range []string{"", "Basic abc", "bearer " + reg.RefreshToken, "Bearer "} {
			_, err := svc.RefreshToken(ctx, header)
			require.ErrorIs(t, err, ErrRefreshRejected, "header %q", header)
		}
		requireOnlyValid(t, svc, a.ID, reg.AccessToken)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := svc.RefreshToken(ctx, bearer(reg.AccessToken))
		require.ErrorIs(t, err, ErrRefreshRejected)
		requireOnlyValid(t, svc, a.ID, reg.AccessToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.RefreshToken(ctx, bearer("not-a-jwt"))
		require.ErrorIs(t, err, domain.ErrToken)
		requireOnlyValid(t, svc, a.ID, reg.AccessToken)
	})

	t.Run("valid refresh", func(t *testing.T) {
		resp, err := svc.RefreshToken(ctx, bearer(reg.RefreshToken))
		require.NoError(t, err)
		assert.False(t, resp.MFAEnabled)
		assert.Equal(t, reg.RefreshToken, resp.RefreshToken)
		assert.NotEqual(t, reg.AccessToken, resp.AccessToken)
		requireOnlyValid(t, svc, a.ID, resp.AccessToken)
	})
}

func TestRefreshToken_ForeignSigningKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, nil)
	register(t, svc, "a@example.com", false)

	other := newService(t, nil)
	foreign := register(t, other, "a@example.com", false)

	_, err := svc.RefreshToken(ctx, bearer(foreign.RefreshToken))
	require.ErrorIs(t, err, domain.ErrToken)
}

func TestLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, nil)
	reg := register(t, svc, "ada@example.com", false)
	a := accountFor(t, svc, "ada@example.com")

	require.NoError(t, svc.Logout(ctx, a.ID))
	assert.Empty(t, validTokens(t, svc, a.ID))

	_, err := svc.ValidateAccessToken(ctx, reg.AccessToken)
	require.ErrorIs(t, err, domain.ErrToken)

	require.NoError(t, svc.Logout(ctx, a.ID), "logout is idempotent")

	err = svc.Logout(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccount(t *testing.T) {
	t.Parallel()
	svc := newService(t, nil)
	register(t, svc, "ada@example.com", false)
	a := accountFor(t, svc, "ada@example.com")

	got, err := svc.Account(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Email, got.Email)

	_, err = svc.Account(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// At most one token record per account may be valid, whatever the
// interleaving of concurrent exchanges.
func TestConcurrentRotationLeavesOneValidToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, nil)
	reg := register(t, svc, "ada@example.com", false)
	a := accountFor(t, svc, "ada@example.com")

	const refreshers = 8
	const authenticators = 2

	var wg sync.WaitGroup
	errs := make(chan error, refreshers+authenticators)
	for range refreshers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RefreshToken(ctx, bearer(reg.RefreshToken))
			errs <- err
		}()
	}
	for range authenticators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Authenticate(ctx, "ada@example.com", testPassword)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, validTokens(t, svc, a.ID), 1)
}
