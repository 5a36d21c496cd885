package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/clientauth/internal/auth/domain"
	"github.com/aussiebroadwan/clientauth/internal/auth/service"
	"github.com/aussiebroadwan/clientauth/pkg/authsdk"
	"github.com/aussiebroadwan/clientauth/pkg/httpx"
	"github.com/aussiebroadwan/clientauth/pkg/slogx"
)

// writeServiceError maps a service failure onto a response. Unclassified
// errors are logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrRefreshRejected) {
		httpx.WriteBearerChallenge(w, "refresh token rejected")
		return
	}

	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		msg = de.Message
	}

	switch domain.KindOf(err) {
	case domain.ErrValidation:
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeValidation, msg).WriteError(w)
	case domain.ErrConflict:
		authsdk.NewAPIError(http.StatusConflict, authsdk.ErrorCodeConflict, msg).WriteError(w)
	case domain.ErrAuthentication:
		authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeAuthentication, msg).WriteError(w)
	case domain.ErrNotFound:
		authsdk.NewAPIError(http.StatusNotFound, authsdk.ErrorCodeNotFound, msg).WriteError(w)
	case domain.ErrToken:
		authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, msg).WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}
