package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArgon2Hasher_HashFormat(t *testing.T) {
	h := NewArgon2Hasher("pepper")

	hash, err := h.Hash("password123")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$"), hash)
	require.Len(t, strings.Split(hash, "$"), 6)

	again, err := h.Hash("password123")
	require.NoError(t, err)
	require.NotEqual(t, hash, again, "salt must differ per hash")
}

func TestArgon2Hasher_Verify(t *testing.T) {
	h := NewArgon2Hasher("pepper")

	tests := []struct {
		name     string
		password string
	}{
		{"simple", "password123"},
		{"symbols", "P@ssw0rd!#$%^&*()"},
		{"empty", ""},
		{"unicode", "пароль🔒密码"},
		{"whitespace", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)

			ok, err := h.Verify(tt.password, hash)
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = h.Verify(tt.password+"x", hash)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestArgon2Hasher_PepperMatters(t *testing.T) {
	hash, err := NewArgon2Hasher("one").Hash("secret")
	require.NoError(t, err)

	ok, err := NewArgon2Hasher("two").Verify("secret", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestArgon2Hasher_MalformedHash(t *testing.T) {
	h := NewArgon2Hasher("")

	for _, in := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA",
	} {
		_, err := h.Verify("secret", in)
		require.ErrorIs(t, err, ErrMalformedHash, in)
	}
}
