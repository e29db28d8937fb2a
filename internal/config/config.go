package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSigningConfig is returned when the JWT secret or algorithm is absent.
var ErrMissingSigningConfig = errors.New("config: JWT_SECRET_KEY and JWT_ALGORITHM are required")

type Config struct {
	HTTPAddr string
	GRPCAddr string
	Version  string

	JWT        JWTConfig
	Mongo      MongoConfig
	Cache      CacheConfig
	Log        LogConfig
	Tracing    TracingConfig
	Kafka      KafkaConfig
	RateLimit  RateLimitConfig
	Seed       SeedConfig
	StoreKind  string
	PublicCORS []string
}

type JWTConfig struct {
	Secret     string
	Algorithm  string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type CacheConfig struct {
	RedisURL           string
	Timeout            time.Duration
	PermissionTTL      time.Duration
	UserTTL            time.Duration
	BreakerOpen        time.Duration
	BlacklistFailClose bool
	RetryInterval      time.Duration
}

type LogConfig struct {
	Level  string
	Pretty bool
}

type TracingConfig struct {
	CollectorHost string
}

type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

type RateLimitConfig struct {
	PerSecond int
	Burst     int
}

type SeedConfig struct {
	OnStart       bool
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from the environment, after loading .env when present.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	return FromLookup(os.LookupEnv)
}

// FromLookup builds configuration from an arbitrary lookup function.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	env := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	conf := &Config{
		HTTPAddr:  env("HTTP_ADDR", ":8080"),
		GRPCAddr:  env("GRPC_ADDR", ""),
		Version:   env("SERVICE_VERSION", "dev"),
		StoreKind: strings.ToLower(env("STORE_BACKEND", "mongo")),
		JWT: JWTConfig{
			Secret:    env("JWT_SECRET_KEY", ""),
			Algorithm: strings.ToUpper(env("JWT_ALGORITHM", "")),
			Issuer:    env("JWT_ISSUER", ""),
		},
		Mongo: MongoConfig{
			URI:      env("MONGO_URI", "mongodb://localhost:27017"),
			Database: env("MONGO_DATABASE", "recruitcore"),
		},
		Cache: CacheConfig{
			RedisURL: env("REDIS_URL", ""),
		},
		Log: LogConfig{
			Level: env("LOG_LEVEL", "info"),
		},
		Tracing: TracingConfig{
			CollectorHost: env("OTEL_COLLECTOR_HOST", ""),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(env("KAFKA_BROKERS", "")),
			AuditTopic: env("KAFKA_AUDIT_TOPIC", "security-audit"),
		},
		Seed: SeedConfig{
			AdminEmail:    env("ADMIN_EMAIL", ""),
			AdminPassword: env("ADMIN_PASSWORD", ""),
		},
		PublicCORS: splitList(env("CORS_ALLOWED_ORIGINS", "")),
	}

	if conf.JWT.Secret == "" || conf.JWT.Algorithm == "" {
		return nil, ErrMissingSigningConfig
	}
	switch conf.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return nil, fmt.Errorf("config: unsupported JWT_ALGORITHM %q", conf.JWT.Algorithm)
	}
	switch conf.StoreKind {
	case "mongo", "memory":
	default:
		return nil, fmt.Errorf("config: unsupported STORE_BACKEND %q", conf.StoreKind)
	}

	var err error
	if conf.JWT.AccessTTL, err = durationVar(env, "ACCESS_TOKEN_EXPIRE_MINUTES", 15, time.Minute); err != nil {
		return nil, err
	}
	if conf.JWT.RefreshTTL, err = durationVar(env, "REFRESH_TOKEN_EXPIRE_DAYS", 7, 24*time.Hour); err != nil {
		return nil, err
	}
	if conf.Mongo.Timeout, err = durationVar(env, "MONGO_TIMEOUT_SECONDS", 5, time.Second); err != nil {
		return nil, err
	}
	if conf.Cache.Timeout, err = durationVar(env, "CACHE_TIMEOUT_SECONDS", 5, time.Second); err != nil {
		return nil, err
	}
	if conf.Cache.PermissionTTL, err = durationVar(env, "CACHE_PERMISSION_TTL_SECONDS", 300, time.Second); err != nil {
		return nil, err
	}
	if conf.Cache.UserTTL, err = durationVar(env, "CACHE_USER_TTL_SECONDS", 1800, time.Second); err != nil {
		return nil, err
	}
	if conf.Cache.BreakerOpen, err = durationVar(env, "CACHE_BREAKER_OPEN_SECONDS", 30, time.Second); err != nil {
		return nil, err
	}
	if conf.Cache.RetryInterval, err = durationVar(env, "INVALIDATION_RETRY_SECONDS", 10, time.Second); err != nil {
		return nil, err
	}
	if conf.RateLimit.PerSecond, err = intVar(env, "RATE_LIMIT_RPS", 5); err != nil {
		return nil, err
	}
	if conf.RateLimit.Burst, err = intVar(env, "RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}
	if conf.Cache.BlacklistFailClose, err = boolVar(env, "BLACKLIST_FAIL_CLOSED", false); err != nil {
		return nil, err
	}
	if conf.Log.Pretty, err = boolVar(env, "LOG_PRETTY", false); err != nil {
		return nil, err
	}
	if conf.Seed.OnStart, err = boolVar(env, "SEED_ON_START", false); err != nil {
		return nil, err
	}
	return conf, nil
}

func durationVar(env func(string, string) string, key string, def int, unit time.Duration) (time.Duration, error) {
	n, err := intVar(env, key, def)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return time.Duration(n) * unit, nil
}

func intVar(env func(string, string) string, key string, def int) (int, error) {
	raw := env(key, "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func boolVar(env func(string, string) string, key string, def bool) (bool, error) {
	raw := env(key, "")
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
