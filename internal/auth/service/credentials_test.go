package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
)

func TestPasswordCredentials(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := newService(t, nil)
	register(t, svc, "ada@example.com", false)
	checker := svc.Credentials

	a, err := checker.VerifyCredentials(ctx, " ADA@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", a.Email)

	for _, tc := range []struct{ email, password string }{
		{"ada@example.com", "wrong"},
		{"nobody@example.com", testPassword},
		{"ada@example.com", ""},
	} {
		_, err := checker.VerifyCredentials(ctx, tc.email, tc.password)
		require.ErrorIs(t, err, domain.ErrAuthentication, "%s/%s", tc.email, tc.password)
	}
}
