// Package mfa provides the TOTP second factor.
package mfa

import (
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

const (
	DefaultSkew   = 1
	DefaultQRSize = 256

	period     = 30
	secretSize = 20
)

var ErrInvalidSecret = errors.New("mfa: invalid secret")

type TOTPProvider struct {
	Issuer string
	// Skew is the number of periods either side of now that are accepted.
	Skew   uint
	QRSize int
	Now    func() time.Time
}

func NewTOTPProvider(issuer string, skew uint, qrSize int) *TOTPProvider {
	if qrSize <= 0 {
		qrSize = DefaultQRSize
	}
	return &TOTPProvider{Issuer: issuer, Skew: skew, QRSize: qrSize, Now: time.Now}
}

// GenerateSecret returns a fresh base32 secret without padding.
func (p *TOTPProvider) GenerateSecret(accountName string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.Issuer,
		AccountName: accountName,
		Period:      period,
		SecretSize:  secretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("mfa: generate secret: %w", err)
	}
	return key.Secret(), nil
}

// EnrollmentURI renders the otpauth:// URL for secret as a QR code and
// returns it as a data:image/png;base64 URI.
func (p *TOTPProvider) EnrollmentURI(secret, accountName string) (string, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.Issuer,
		AccountName: accountName,
		Period:      period,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("mfa: build key: %w", err)
	}

	png, err := qrcode.Encode(key.URL(), qrcode.Medium, p.QRSize)
	if err != nil {
		return "", fmt.Errorf("mfa: encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// MatchCode reports whether code matches secret within Skew periods of now,
// and returns the time step it matched. Malformed codes and secrets are
// simply invalid.
func (p *TOTPProvider) MatchCode(secret, code string) (int64, bool) {
	code = strings.TrimSpace(code)
	if len(code) != otp.DigitsSix.Length() {
		return 0, false
	}

	opts := totp.ValidateOpts{
		Period:    period,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
	now := p.now().UTC().Unix() / period
	skew := int64(p.Skew)
	for step := now - skew; step <= now+skew; step++ {
		want, err := totp.GenerateCodeCustom(secret, time.Unix(step*period, 0).UTC(), opts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}

func (p *TOTPProvider) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "="))
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(secret)
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidSecret
	}
	return raw, nil
}
