package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/clientauth/internal/auth/http"
	"github.com/aussiebroadwan/clientauth/internal/auth/lock"
	"github.com/aussiebroadwan/clientauth/internal/auth/metrics"
	"github.com/aussiebroadwan/clientauth/internal/auth/mfa"
	"github.com/aussiebroadwan/clientauth/internal/auth/service"
	"github.com/aussiebroadwan/clientauth/internal/auth/store"
	"github.com/aussiebroadwan/clientauth/internal/auth/token"
	"github.com/aussiebroadwan/clientauth/pkg/cryptox"
	"github.com/aussiebroadwan/clientauth/pkg/httpx"
	"github.com/aussiebroadwan/clientauth/pkg/jwtx"
	"github.com/aussiebroadwan/clientauth/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	db          store.Store
	keyManager  *jwtx.KeyManager
	metrics     *metrics.Metrics
	locker      lock.Locker
	redisClient *redis.Client

	authService         *service.AuthService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slogx.New(slogx.Config{
			Service: "clientauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
		})
	}

	app := &Application{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	keyManager, err := InitAuthKeys(cfg, app.logger)
	if err != nil {
		app.closeAll()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = keyManager

	if err := app.initLock(ctx); err != nil {
		app.closeAll()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		app.closeAll()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler is the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until ctx is cancelled or the server
// fails.
func (app *Application) Run(ctx context.Context) error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.HTTP.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		app.logger.Info("shutdown requested", "cause", context.Cause(ctx))
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.HTTP.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeAll(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) closeAll() error {
	var errs []error
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
			errs = append(errs, err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initDatabase opens the configured store and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	db, err := OpenStore(ctx, app.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		app.db = nil
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.Database.Driver)
	return nil
}

func (app *Application) initLock(ctx context.Context) error {
	if app.cfg.Lock.Driver != LockRedis {
		app.locker = lock.NewLocal()
		app.logger.Info("using in-process rotation lock")
		return nil
	}

	app.redisClient = redis.NewClient(&redis.Options{
		Addr:     app.cfg.Lock.RedisAddr,
		Password: app.cfg.Lock.RedisPassword,
		DB:       app.cfg.Lock.RedisDB,
	})
	rl := lock.NewRedis(app.redisClient, lock.RedisOptions{
		TTL:    app.cfg.Lock.TTL,
		Logger: app.logger,
	})
	if err := rl.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach redis at %s: %w", app.cfg.Lock.RedisAddr, err)
	}
	app.locker = rl
	app.logger.Info("using redis rotation lock", "addr", app.cfg.Lock.RedisAddr)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	hasher := cryptox.NewArgon2Hasher(pepper)

	app.authService = &service.AuthService{
		Store:       app.db,
		Credentials: &service.PasswordCredentials{Store: app.db, Passwords: hasher},
		Passwords:   hasher,
		Tokens: token.NewCodec(app.keyManager, token.Options{
			Issuer:     app.cfg.Issuer,
			AccessTTL:  app.cfg.Tokens.AccessTTL,
			RefreshTTL: app.cfg.Tokens.RefreshTTL,
		}),
		SecondFactor:   mfa.NewTOTPProvider(app.cfg.MFA.Issuer, app.cfg.MFA.Skew, app.cfg.MFA.QRSize),
		Locker:         app.locker,
		Metrics:        app.metrics,
		ChallengeTTL:   app.cfg.MFA.ChallengeTTL,
		MaxMFAAttempts: app.cfg.MFA.MaxAttempts,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.Metrics = app.metrics
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.authService,
		app.keyManager,
		BuildVersion,
		app.db,
		app.logger,
	)
	router.Metrics = app.metrics
	router.Limits = httpapi.RateLimits{
		Strict:   limit(app.cfg.RateLimit.Strict),
		Moderate: limit(app.cfg.RateLimit.Moderate),
		Lenient:  limit(app.cfg.RateLimit.Lenient),
	}
	if rl, ok := app.locker.(*lock.Redis); ok {
		router.Lock = rl
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: app.cfg.HTTP.ReadHeaderTimeout,
	}
}

func limit(l LimitConfig) httpx.RateLimitConfig {
	return httpx.RateLimitConfig{RequestsPerWindow: l.Requests, Window: l.Window, Burst: l.Burst}
}
