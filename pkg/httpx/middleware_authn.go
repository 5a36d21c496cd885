package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/clientauth/pkg/slogx"
)

const bearerPrefix = "Bearer "

// BearerToken extracts the credential from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-sensitively.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

// Authenticator validates a bearer token and returns the context the rest of
// the request should run with.
type Authenticator func(ctx context.Context, token string) (context.Context, error)

// AuthnMiddleware rejects requests without a bearer token accepted by authn.
func AuthnMiddleware(authn Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteBearerChallenge(w, "missing bearer token")
				return
			}

			ctx, err := authn(r.Context(), raw)
			if err != nil {
				slogx.FromContext(r.Context()).Warn("bearer token rejected", "err", err)
				WriteBearerChallenge(w, "token is not valid")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteBearerChallenge answers 401 with an RFC 6750 challenge and no body.
func WriteBearerChallenge(w http.ResponseWriter, desc string) {
	NoCache(w)
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
