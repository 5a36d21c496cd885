package http

import (
	"net/http"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
	"github.com/aussiebroadwan/clientauth/internal/auth/service"
	"github.com/aussiebroadwan/clientauth/pkg/authsdk"
	"github.com/aussiebroadwan/clientauth/pkg/httpx"
)

type AuthHandler struct {
	AuthService *service.AuthService
}

func toAuthResponse(resp domain.AuthResponse) authsdk.AuthResponse {
	return authsdk.AuthResponse{
		AccessToken:    resp.AccessToken,
		RefreshToken:   resp.RefreshToken,
		MFAEnabled:     resp.MFAEnabled,
		SecretImageURI: resp.SecretImageURI,
	}
}

// HandleRegister godoc
//
//	@Summary		Register an account
//	@Description	Creates an account and returns its first token pair. With mfa_enabled the response carries a QR code data URI for the authenticator app.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest					true	"Account details"
//	@Success		201		{object}	authsdk.AuthResponse					"access_token, refresh_token, mfa_enabled, secret_image_uri"
//	@Failure		400		{object}	authsdk.ValidationErrorResponse			"Malformed or invalid body"
//	@Failure		409		{object}	authsdk.ErrorResponse					"Email already registered"
//	@Failure		429		{object}	authsdk.ErrorResponse					"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.ErrorResponse					"Internal server error"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	resp, err := h.AuthService.Register(r.Context(), service.RegisterRequest{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Password:   req.Password,
		MFAEnabled: req.MFAEnabled,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toAuthResponse(resp))
}

// HandleAuthenticate godoc
//
//	@Summary		Authenticate with email and password
//	@Description	Returns a new token pair and revokes earlier tokens. For accounts with a second factor the tokens are empty, mfa_enabled is true and the caller continues with /v1/auth/verify.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.AuthenticateRequest		true	"Credentials"
//	@Success		200		{object}	authsdk.AuthResponse			"Tokens, or empty tokens when a code is required"
//	@Failure		400		{object}	authsdk.ValidationErrorResponse	"Malformed or invalid body"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Invalid credentials"
//	@Failure		429		{object}	authsdk.ErrorResponse			"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.ErrorResponse			"Internal server error"
//	@Router			/v1/auth/authenticate [post].
func (h *AuthHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.AuthenticateRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	resp, err := h.AuthService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(resp))
}

// HandleVerify godoc
//
//	@Summary		Verify a TOTP code
//	@Description	Completes an authentication that required a second factor. Returns a new token pair and revokes earlier tokens.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerificationRequest		true	"Email and six digit code"
//	@Success		200		{object}	authsdk.AuthResponse			"access_token, refresh_token, mfa_enabled"
//	@Failure		400		{object}	authsdk.ValidationErrorResponse	"Malformed or invalid body"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Code is not correct"
//	@Failure		404		{object}	authsdk.ErrorResponse			"Unknown account"
//	@Failure		429		{object}	authsdk.ErrorResponse			"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.ErrorResponse			"Internal server error"
//	@Router			/v1/auth/verify [post].
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerificationRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	resp, err := h.AuthService.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(resp))
}

// HandleRefresh godoc
//
//	@Summary		Refresh the access token
//	@Description	Exchanges the refresh token in the Authorization header for a new access token. The refresh token itself is returned unchanged. A rejected token gets 401 with an empty body.
//	@Tags			Auth
//	@Produce		json
//	@Param			Authorization	header		string					true	"Bearer {refresh_token}"
//	@Success		200				{object}	authsdk.AuthResponse	"access_token, refresh_token"
//	@Failure		401				"Refresh token rejected"
//	@Failure		404				{object}	authsdk.ErrorResponse	"Unknown account"
//	@Failure		429				{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		500				{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/auth/refresh-token [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	resp, err := h.AuthService.RefreshToken(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAuthResponse(resp))
}

// HandleLogout godoc
//
//	@Summary		Log out everywhere
//	@Description	Revokes every valid token of the authenticated account.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204	"Tokens revoked"
//	@Failure		401	"Invalid or missing access token"
//	@Failure		429	{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	accountID := httpx.SubjectFromContext(r.Context())
	if err := h.AuthService.Logout(r.Context(), accountID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
