package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("row missing")

	tests := []struct {
		name string
		err  error
		kind domain.Kind
	}{
		{"validation", domain.ValidationError("email is required"), domain.ErrValidation},
		{"conflict", domain.ConflictError("email already registered"), domain.ErrConflict},
		{"authentication", domain.AuthenticationError(domain.MsgInvalidCredentials), domain.ErrAuthentication},
		{"not found", domain.NotFoundError("account not found", cause), domain.ErrNotFound},
		{"token", domain.TokenError("token is not valid", nil), domain.ErrToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)

			require.ErrorIs(t, wrapped, tt.kind)
			require.Equal(t, tt.kind, domain.KindOf(wrapped))

			for _, other := range []domain.Kind{domain.ErrValidation, domain.ErrConflict, domain.ErrAuthentication, domain.ErrNotFound, domain.ErrToken} {
				if other != tt.kind {
					require.NotErrorIs(t, wrapped, other)
				}
			}
		})
	}

	require.ErrorIs(t, domain.NotFoundError("account not found", cause), cause)
	require.Equal(t, domain.Kind(""), domain.KindOf(errors.New("plain")))
	require.Equal(t, domain.ErrConflict, domain.KindOf(domain.ErrConflict))
}

func TestErrorMessage(t *testing.T) {
	require.Equal(t, "authentication_error: invalid credentials", domain.AuthenticationError(domain.MsgInvalidCredentials).Error())
	require.Equal(t, "not_found", (&domain.Error{Kind: domain.ErrNotFound}).Error())
}
