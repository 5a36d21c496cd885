package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient calls the unauthenticated endpoints and opens Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates an account. For MFA accounts the enrollment image is in
// the returned AuthResponse.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*Session, *AuthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/register", req, nil)
	if err != nil {
		return nil, nil, err
	}

	var out AuthResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, nil, err
	}
	return newSession(c, out.AccessToken, out.RefreshToken), &out, nil
}

// Authenticate signs in with a password. It returns ErrMFARequired when the
// account has a second factor.
func (c *SDKClient) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/authenticate",
		AuthenticateRequest{Email: email, Password: password}, nil)
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	if out.MFAEnabled && out.AccessToken == "" {
		return nil, ErrMFARequired
	}
	return newSession(c, out.AccessToken, out.RefreshToken), nil
}

// VerifyCode finishes an authentication that returned ErrMFARequired.
func (c *SDKClient) VerifyCode(ctx context.Context, email, code string) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/verify",
		VerificationRequest{Email: email, Code: code}, nil)
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, out.AccessToken, out.RefreshToken), nil
}

// RefreshToken exchanges a refresh token for a new access token. A rejected
// token is an *APIError with code ErrorCodeInvalidToken.
func (c *SDKClient) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/refresh-token", nil,
		map[string]string{"Authorization": "Bearer " + refreshToken})
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// NewSessionFromTokens resumes a session from stored tokens.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string) *Session {
	return newSession(c, accessToken, refreshToken)
}
