package http_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authhttp "github.com/aussiebroadwan/clientauth/internal/auth/http"
	"github.com/aussiebroadwan/clientauth/internal/auth/lock"
	"github.com/aussiebroadwan/clientauth/internal/auth/metrics"
	"github.com/aussiebroadwan/clientauth/internal/auth/service"
	"github.com/aussiebroadwan/clientauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/clientauth/internal/auth/token"
	"github.com/aussiebroadwan/clientauth/pkg/authsdk"
	"github.com/aussiebroadwan/clientauth/pkg/cryptox"
	"github.com/aussiebroadwan/clientauth/pkg/httpx"
	"github.com/aussiebroadwan/clientauth/pkg/jwtx"
	"github.com/aussiebroadwan/clientauth/pkg/slogx"
)

const (
	testPassword = "correct horse battery staple"
	testSecret   = "JBSWY3DPEHPK3PXP"
	goodCode     = "123456"
)

type fakeSecondFactor struct{}

func (fakeSecondFactor) GenerateSecret(string) (string, error) { return testSecret, nil }

func (fakeSecondFactor) EnrollmentURI(secret, _ string) (string, error) {
	return "data:image/png;base64," + secret, nil
}

func (fakeSecondFactor) MatchCode(secret, code string) (int64, bool) {
	return 1, secret == testSecret && code == goodCode
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

var generous = httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}

type testEnv struct {
	server *httptest.Server
	client *authsdk.SDKClient
	router *authhttp.Router
}

func newTestEnv(t *testing.T, configure func(*authhttp.Router)) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.FileDSN(filepath.Join(t.TempDir(), "auth.db")))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    "clientauth-test",
		NumKeys:   1,
	})
	require.NoError(t, err)

	hasher := cryptox.NewArgon2Hasher("test-pepper")
	m := metrics.New()
	svc := &service.AuthService{
		Store:        st,
		Credentials:  &service.PasswordCredentials{Store: st, Passwords: hasher},
		Passwords:    hasher,
		Tokens:       token.NewCodec(km, token.Options{Issuer: "clientauth-test"}),
		SecondFactor: fakeSecondFactor{},
		Locker:       lock.NewLocal(),
		Metrics:      m,
	}

	router := authhttp.NewRouter(svc, km, "test", st, slogx.Discard())
	router.Metrics = m
	router.Limits = authhttp.RateLimits{Strict: generous, Moderate: generous, Lenient: generous}
	if configure != nil {
		configure(router)
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, client: authsdk.NewSDKClient(srv.URL), router: router}
}

func (e *testEnv) register(t *testing.T, email string, mfa bool) (*authsdk.Session, *authsdk.AuthResponse) {
	t.Helper()
	sess, resp, err := e.client.Register(context.Background(), authsdk.RegisterRequest{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      email,
		Password:   testPassword,
		MFAEnabled: mfa,
	})
	require.NoError(t, err)
	return sess, resp
}

func (e *testEnv) post(t *testing.T, path, authorization string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, nil)
	require.NoError(t, err)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	t.Run("without second factor", func(t *testing.T) {
		sess, resp := env.register(t, "Ada@Example.com", false)
		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.False(t, resp.MFAEnabled)
		assert.Empty(t, resp.SecretImageURI)

		account, err := sess.Account(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", account.Email)
		assert.Equal(t, "USER", account.Role)
	})

	t.Run("with second factor", func(t *testing.T) {
		_, resp := env.register(t, "grace@example.com", true)
		assert.True(t, resp.MFAEnabled)
		assert.True(t, strings.HasPrefix(resp.SecretImageURI, "data:image/png;base64,"))
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, _, err := env.client.Register(ctx, authsdk.RegisterRequest{
			FirstName: "Ada", LastName: "Lovelace", Email: "ADA@example.com", Password: testPassword,
		})
		var apiErr *authsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
		assert.Equal(t, authsdk.ErrorCodeConflict, apiErr.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		_, _, err := env.client.Register(ctx, authsdk.RegisterRequest{
			FirstName: "Ada", LastName: "Lovelace", Email: "not-an-email", Password: "short",
		})
		var apiErr *authsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, authsdk.ErrorCodeValidation, apiErr.Code)
		assert.Contains(t, apiErr.Details, "email")
		assert.Contains(t, apiErr.Details, "password")
	})
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	first, _ := env.register(t, "ada@example.com", false)

	t.Run("wrong password", func(t *testing.T) {
		_, err := env.client.Authenticate(ctx, "ada@example.com", "wrong password")
		var apiErr *authsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, authsdk.ErrorCodeAuthentication, apiErr.Code)
		assert.Equal(t, "invalid credentials", apiErr.Description)
	})

	t.Run("unknown email looks like a wrong password", func(t *testing.T) {
		_, err := env.client.Authenticate(ctx, "nobody@example.com", testPassword)
		assert.True(t, authsdk.IsCode(err, authsdk.ErrorCodeAuthentication))
	})

	t.Run("success revokes earlier tokens", func(t *testing.T) {
		sess, err := env.client.Authenticate(ctx, "ada@example.com", testPassword)
		require.NoError(t, err)

		_, err = sess.Account(ctx)
		require.NoError(t, err)

		_, err = first.Account(ctx)
		assert.True(t, authsdk.IsCode(err, authsdk.ErrorCodeInvalidToken), "got %v", err)
	})
}

func TestSecondFactor(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.register(t, "grace@example.com", true)

	_, err := env.client.VerifyCode(ctx, "grace@example.com", goodCode)
	assert.True(t, authsdk.IsCode(err, authsdk.ErrorCodeAuthentication), "verify without a challenge, got %v", err)

	_, err = env.client.Authenticate(ctx, "grace@example.com", testPassword)
	require.ErrorIs(t, err, authsdk.ErrMFARequired)

	_, err = env.client.VerifyCode(ctx, "grace@example.com", "000000")
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "code is not correct", apiErr.Description)

	sess, err := env.client.VerifyCode(ctx, "grace@example.com", goodCode)
	require.NoError(t, err)
	access, refresh := sess.Tokens()
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)

	account, err := sess.Account(ctx)
	require.NoError(t, err)
	assert.True(t, account.MFAEnabled)

	_, err = env.client.VerifyCode(ctx, "nobody@example.com", goodCode)
	assert.True(t, authsdk.IsCode(err, authsdk.ErrorCodeNotFound), "got %v", err)

	_, err = env.client.VerifyCode(ctx, "grace@example.com", "12ab56")
	assert.True(t, authsdk.IsCode(err, authsdk.ErrorCodeValidation), "got %v", err)
}

func TestRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	sess, _ := env.register(t, "ada@example.com", false)
	oldAccess, oldRefresh := sess.Tokens()

	require.NoError(t, sess.Refresh(ctx))
	newAccess, newRefresh := sess.Tokens()
	assert.NotEqual(t, oldAccess, newAccess)
	assert.Equal(t, oldRefresh, newRefresh)

	_, err := sess.Account(ctx)
	require.NoError(t, err)

	stale := env.client.NewSessionFromTokens(oldAccess, oldRefresh)
	_, err = stale.Account(ctx)
	assert.True(t, authsdk.IsCode(err, authsdk.ErrorCodeInvalidToken), "got %v", err)

	t.Run("rejected without body", func(t *testing.T) {
		for _, header := range []string{"", "Basic " + oldRefresh, "Bearer " + newAccess} {
			resp := env.post(t, "/v1/auth/refresh-token", header)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "header %q", header)
			assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Empty(t, body, "header %q", header)
		}
	})

	t.Run("unparseable token", func(t *testing.T) {
		resp := env.post(t, "/v1/auth/refresh-token", "Bearer garbage")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("sdk reports rejection as invalid token", func(t *testing.T) {
		_, err := env.client.RefreshToken(ctx, newAccess)
		assert.True(t, authsdk.IsCode(err, authsdk.ErrorCodeInvalidToken), "got %v", err)
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	sess, _ := env.register(t, "ada@example.com", false)
	access, _ := sess.Tokens()

	resp := env.post(t, "/v1/auth/logout", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	require.NoError(t, sess.Logout(ctx))

	after := env.client.NewSessionFromTokens(access, "")
	_, err := after.Account(ctx)
	assert.True(t, authsdk.IsCode(err, authsdk.ErrorCodeInvalidToken), "got %v", err)
}

func TestHealth(t *testing.T) {
	ctx := context.Background()

	t.Run("ready", func(t *testing.T) {
		env := newTestEnv(t, nil)

		live, err := env.client.GetLiveness(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ok", live.Status)
		assert.Equal(t, "test", live.Version)
		assert.Nil(t, live.Checks)

		ready, err := env.client.GetReadiness(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ok", ready.Status)
		require.NotNil(t, ready.Checks)
		assert.Equal(t, "ok", ready.Checks.Database)
		assert.Equal(t, "ok", ready.Checks.Signer)
		assert.Empty(t, ready.Checks.Lock)
	})

	t.Run("lock unavailable", func(t *testing.T) {
		env := newTestEnv(t, func(r *authhttp.Router) { r.Lock = failingPinger{} })

		_, err := env.client.GetReadiness(ctx)
		var apiErr *authsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register(t, "ada@example.com", false)

	resp, err := env.server.Client().Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `clientauth_http_requests_total{code="201",route="register"} 1`)
	assert.Contains(t, string(body), `clientauth_operations_total{operation="register",outcome="success"} 1`)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(r *authhttp.Router) {
		r.Limits.Strict = httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	})
	ctx := context.Background()

	for range 2 {
		_, err := env.client.Authenticate(ctx, "ada@example.com", "whatever")
		assert.True(t, authsdk.IsCode(err, authsdk.ErrorCodeAuthentication), "got %v", err)
	}

	_, err := env.client.Authenticate(ctx, "ada@example.com", "whatever")
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, authsdk.ErrorCodeRateLimited, apiErr.Code)

	// A different email has its own budget.
	_, err = env.client.Authenticate(ctx, "grace@example.com", "whatever")
	assert.True(t, authsdk.IsCode(err, authsdk.ErrorCodeAuthentication), "got %v", err)
}
