package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/aussiebroadwan/clientauth/internal/auth/lock"
	"github.com/aussiebroadwan/clientauth/internal/auth/mfa"
	"github.com/aussiebroadwan/clientauth/internal/auth/service"
	"github.com/aussiebroadwan/clientauth/pkg/jwtx"
)

// EnvPrefix is stripped from environment keys; "__" separates nested keys,
// e.g. AUTH_DATABASE__POSTGRES_URL sets database.postgres_url.
const EnvPrefix = "AUTH_"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	LockLocal = "local"
	LockRedis = "redis"
)

type Config struct {
	Env                  string        `koanf:"env"`    // dev, staging, prod
	Issuer               string        `koanf:"issuer"` // iss claim of every token
	PepperFile           string        `koanf:"pepper_file"`
	HousekeepingInterval time.Duration `koanf:"housekeeping_interval"`

	Log       LogConfig       `koanf:"log"`
	HTTP      HTTPConfig      `koanf:"http"`
	Database  DatabaseConfig  `koanf:"database"`
	Keys      KeysConfig      `koanf:"keys"`
	Tokens    TokensConfig    `koanf:"tokens"`
	MFA       MFAConfig       `koanf:"mfa"`
	Lock      LockConfig      `koanf:"lock"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type HTTPConfig struct {
	Port                int           `koanf:"port"`
	ShutdownGracePeriod time.Duration `koanf:"shutdown_grace_period"`
	ReadHeaderTimeout   time.Duration `koanf:"read_header_timeout"`
}

type DatabaseConfig struct {
	Driver      string `koanf:"driver"`
	SQLiteFile  string `koanf:"sqlite_file"`
	PostgresURL string `koanf:"postgres_url"`
}

// KeysConfig sizes the in-memory signing key pool.
type KeysConfig struct {
	Algorithm string `koanf:"algorithm"`
	NumKeys   int    `koanf:"num_keys"`
}

type TokensConfig struct {
	AccessTTL  time.Duration `koanf:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
}

type MFAConfig struct {
	Issuer       string        `koanf:"issuer"` // shown in authenticator apps
	Skew         uint          `koanf:"skew"`
	QRSize       int           `koanf:"qr_size"`
	ChallengeTTL time.Duration `koanf:"challenge_ttl"`
	MaxAttempts  int           `koanf:"max_attempts"`
}

// LockConfig selects how token rotation is serialised per account. The local
// lock only covers a single replica.
type LockConfig struct {
	Driver        string        `koanf:"driver"`
	TTL           time.Duration `koanf:"ttl"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
}

type RateLimitConfig struct {
	Strict   LimitConfig `koanf:"strict"`
	Moderate LimitConfig `koanf:"moderate"`
	Lenient  LimitConfig `koanf:"lenient"`
}

type LimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
}

func DefaultConfig() Config {
	return Config{
		Env:                  "dev",
		Issuer:               "clientauth",
		PepperFile:           "pepper",
		HousekeepingInterval: time.Hour,
		Log:                  LogConfig{Level: "info", Format: "json"},
		HTTP: HTTPConfig{
			Port:                8080,
			ShutdownGracePeriod: 10 * time.Second,
			ReadHeaderTimeout:   3 * time.Second,
		},
		Database: DatabaseConfig{Driver: DriverSQLite, SQLiteFile: "auth.db"},
		Keys:     KeysConfig{Algorithm: jwtx.AlgorithmEdDSA, NumKeys: 3},
		Tokens: TokensConfig{
			AccessTTL:  jwtx.DefaultAccessTokenTTL,
			RefreshTTL: jwtx.DefaultRefreshTokenTTL,
		},
		MFA: MFAConfig{
			Issuer:       "clientauth",
			Skew:         mfa.DefaultSkew,
			QRSize:       mfa.DefaultQRSize,
			ChallengeTTL: service.DefaultChallengeTTL,
			MaxAttempts:  service.DefaultMaxMFAAttempts,
		},
		Lock: LockConfig{Driver: LockLocal, TTL: lock.DefaultRedisTTL},
		RateLimit: RateLimitConfig{
			Strict:   LimitConfig{Requests: 5, Window: time.Minute, Burst: 5},
			Moderate: LimitConfig{Requests: 20, Window: time.Minute, Burst: 20},
			Lenient:  LimitConfig{Requests: 100, Window: time.Minute, Burst: 100},
		},
	}
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"env":             "env",
	"issuer":          "issuer",
	"port":            "http.port",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"database-driver": "database.driver",
	"sqlite-file":     "database.sqlite_file",
	"postgres-url":    "database.postgres_url",
	"lock-driver":     "lock.driver",
	"redis-addr":      "lock.redis_addr",
	"pepper-file":     "pepper_file",
}

// RegisterFlags adds the overridable settings to fs. Only flags the user set
// take part in Load.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.String("config", "", "path to a YAML config file")
	fs.String("env", d.Env, "environment name (dev, staging, prod)")
	fs.String("issuer", d.Issuer, "issuer claim of issued tokens")
	fs.Int("port", d.HTTP.Port, "HTTP listen port")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("log-format", d.Log.Format, "log format (json, text)")
	fs.String("database-driver", d.Database.Driver, "credential store (sqlite, postgres)")
	fs.String("sqlite-file", d.Database.SQLiteFile, "SQLite database file")
	fs.String("postgres-url", "", "PostgreSQL connection URL")
	fs.String("lock-driver", d.Lock.Driver, "rotation lock (local, redis)")
	fs.String("redis-addr", "", "Redis address for the rotation lock")
	fs.String("pepper-file", d.PepperFile, "file holding the password pepper")
}

// Load layers, lowest first: defaults, the YAML file at path, AUTH_
// environment variables, then changed flags in fs. path and fs may be empty.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ReplaceAll(strings.ToLower(key), "__", ".")
	return key, value
}

func (c Config) Validate() error {
	var errs []error

	if c.Issuer == "" {
		errs = append(errs, errors.New("issuer is required"))
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLiteFile == "" {
			errs = append(errs, errors.New("database.sqlite_file is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.Database.PostgresURL == "" {
			errs = append(errs, errors.New("database.postgres_url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.Keys.Algorithm {
	case jwtx.AlgorithmEdDSA, jwtx.AlgorithmES256:
	default:
		errs = append(errs, fmt.Errorf("unsupported keys.algorithm %q", c.Keys.Algorithm))
	}

	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.MFA.MaxAttempts <= 0 {
		errs = append(errs, errors.New("mfa.max_attempts must be positive"))
	}

	switch c.Lock.Driver {
	case LockLocal:
	case LockRedis:
		if c.Lock.RedisAddr == "" {
			errs = append(errs, errors.New("lock.redis_addr is required for the redis lock"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock.driver %q", c.Lock.Driver))
	}

	for name, l := range map[string]LimitConfig{
		"strict":   c.RateLimit.Strict,
		"moderate": c.RateLimit.Moderate,
		"lenient":  c.RateLimit.Lenient,
	} {
		if l.Requests <= 0 || l.Window <= 0 || l.Burst <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.%s must have positive requests, window and burst", name))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
