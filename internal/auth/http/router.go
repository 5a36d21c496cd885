package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/clientauth/api/auth" // Swagger docs
	"github.com/aussiebroadwan/clientauth/internal/auth/metrics"
	"github.com/aussiebroadwan/clientauth/internal/auth/service"
	"github.com/aussiebroadwan/clientauth/internal/auth/store"
	"github.com/aussiebroadwan/clientauth/pkg/httpx"
	"github.com/aussiebroadwan/clientauth/pkg/jwtx"
	"github.com/aussiebroadwan/clientauth/pkg/slogx"
)

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RateLimits are the three profiles routes are assigned to.
type RateLimits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Lenient  httpx.RateLimitConfig
}

func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Lenient:  httpx.LenientLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyManager
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	AuthService *service.AuthService
	Metrics     *metrics.Metrics
	Limits      RateLimits

	// Lock is pinged by /readyz when the rotation lock is remote.
	Lock Pinger
}

func NewRouter(
	auth *service.AuthService,
	keys *jwtx.KeyManager,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		AuthService:  auth,
		Limits:       DefaultRateLimits(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAccount()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Client Authentication Service API
//	@version		0.1.0
//	@description	Account registration, password and TOTP authentication, and bearer token rotation.
//	@description
//	@description				Issuing a token revokes every token previously issued to the same account.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/clientauth
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) handle(pattern, route string, h http.Handler, mws ...httpx.Middleware) {
	r.Mux.Handle(pattern, r.Metrics.Instrument(route, httpx.Chain(h, mws...)))
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}

	// Credential endpoints are limited per IP and email to slow down guessing.
	r.handle("POST /v1/auth/register", "register", http.HandlerFunc(h.HandleRegister),
		httpx.RateLimitByIP(r.Limits.Strict),
	)
	r.handle("POST /v1/auth/authenticate", "authenticate", http.HandlerFunc(h.HandleAuthenticate),
		httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"),
	)
	r.handle("POST /v1/auth/verify", "verify", http.HandlerFunc(h.HandleVerify),
		httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"),
	)
	r.handle("POST /v1/auth/refresh-token", "refresh_token", http.HandlerFunc(h.HandleRefresh),
		httpx.RateLimitByIP(r.Limits.Moderate),
	)
	r.handle("POST /v1/auth/logout", "logout", http.HandlerFunc(h.HandleLogout),
		httpx.AuthnMiddleware(r.authenticate),
		httpx.RateLimitBySubject(r.Limits.Moderate),
	)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{AuthService: r.AuthService}

	r.handle("GET /v1/account", "account", h,
		httpx.AuthnMiddleware(r.authenticate),
		httpx.RateLimitBySubject(r.Limits.Lenient),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.Lock),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /metrics", r.Metrics.Handler())
}

// authenticate accepts access tokens whose record is still valid and puts
// the account id in the request context.
func (r *Router) authenticate(ctx context.Context, token string) (context.Context, error) {
	account, err := r.AuthService.ValidateAccessToken(ctx, token)
	if err != nil {
		return ctx, err
	}
	ctx = httpx.WithSubject(ctx, account.ID)
	return slogx.With(ctx, "account_id", account.ID), nil
}
