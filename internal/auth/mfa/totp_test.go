package mfa

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    period,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestGenerateSecret(t *testing.T) {
	p := NewTOTPProvider("clientauth", DefaultSkew, 0)

	a, err := p.GenerateSecret("ada@example.com")
	require.NoError(t, err)
	b, err := p.GenerateSecret("ada@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")
	raw, err := decodeSecret(a)
	require.NoError(t, err)
	assert.Len(t, raw, secretSize)
}

func TestMatchCode(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)
	p := NewTOTPProvider("clientauth", 1, 0)
	p.Now = func() time.Time { return now }

	secret, err := p.GenerateSecret("ada@example.com")
	require.NoError(t, err)
	current := now.Unix() / period

	tests := []struct {
		name     string
		code     string
		wantOK   bool
		wantStep int64
	}{
		{"current period", codeAt(t, secret, now), true, current},
		{"previous period within skew", codeAt(t, secret, now.Add(-30*time.Second)), true, current - 1},
		{"next period within skew", codeAt(t, secret, now.Add(30*time.Second)), true, current + 1},
		{"outside skew", codeAt(t, secret, now.Add(-90*time.Second)), false, 0},
		{"empty", "", false, 0},
		{"too short", "12345", false, 0},
		{"not digits", "abcdef", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, ok := p.MatchCode(secret, tt.code)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantStep, step)
		})
	}
}

func TestMatchCode_NoSkew(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 15, 0, time.UTC)
	p := NewTOTPProvider("clientauth", 0, 0)
	p.Now = func() time.Time { return now }

	secret, err := p.GenerateSecret("ada@example.com")
	require.NoError(t, err)

	_, ok := p.MatchCode(secret, codeAt(t, secret, now))
	assert.True(t, ok)
	_, ok = p.MatchCode(secret, codeAt(t, secret, now.Add(-30*time.Second)))
	assert.False(t, ok)
}

func TestMatchCode_BadSecret(t *testing.T) {
	p := NewTOTPProvider("clientauth", 1, 0)
	_, ok := p.MatchCode("not base32 !!", "123456")
	assert.False(t, ok)
}

func TestEnrollmentURI(t *testing.T) {
	p := NewTOTPProvider("clientauth", 1, 128)
	secret, err := p.GenerateSecret("ada@example.com")
	require.NoError(t, err)

	uri, err := p.EnrollmentURI(secret, "ada@example.com")
	require.NoError(t, err)

	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(uri, prefix))
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	_, err = p.EnrollmentURI("!!!", "ada@example.com")
	assert.ErrorIs(t, err, ErrInvalidSecret)
}
