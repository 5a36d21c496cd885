package http

import (
	"net/http"

	"github.com/aussiebroadwan/clientauth/internal/auth/service"
	"github.com/aussiebroadwan/clientauth/pkg/authsdk"
	"github.com/aussiebroadwan/clientauth/pkg/httpx"
	"github.com/aussiebroadwan/clientauth/pkg/slogx"
)

type AccountHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP returns the authenticated account.
//
//	@Summary		Get the current account
//	@Description	Returns the authentication fields of the account the access token belongs to.
//	@Tags			Account
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.AccountResponse	"id, names, email, role, mfa_enabled"
//	@Failure		401	"Invalid or missing access token"
//	@Failure		404	{object}	authsdk.ErrorResponse	"Account not found"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/account [get].
func (h *AccountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID := httpx.SubjectFromContext(ctx)
	if accountID == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	account, err := h.AuthService.Account(ctx, accountID)
	if err != nil {
		slogx.FromContext(ctx).Warn("failed to load account", "err", err)
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.AccountResponse{
		ID:         account.ID,
		FirstName:  account.FirstName,
		LastName:   account.LastName,
		Email:      account.Email,
		Role:       string(account.Role),
		MFAEnabled: account.MFAEnabled,
		CreatedAt:  account.CreatedAt,
	})
}
