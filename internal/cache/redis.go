package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"recruitcore.io/internal/obs"
)

const defaultOpTimeout = 5 * time.Second

// RedisStore is a Store over Redis. Every call runs through a circuit breaker so an outage
// turns into fast ErrUnavailable answers instead of per-request timeouts.
type RedisStore struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker[[]byte]
	timeout time.Duration
}

// RedisOption configures RedisStore.
type RedisOption func(*redisSettings)

type redisSettings struct {
	name         string
	timeout      time.Duration
	openInterval time.Duration
}

// WithOpTimeout bounds each Redis round trip.
func WithOpTimeout(d time.Duration) RedisOption {
	return func(s *redisSettings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBreakerName labels the breaker in logs and metrics.
func WithBreakerName(name string) RedisOption {
	return func(s *redisSettings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithOpenInterval sets how long the breaker stays open before probing again.
func WithOpenInterval(d time.Duration) RedisOption {
	return func(s *redisSettings) {
		if d > 0 {
			s.openInterval = d
		}
	}
}

// NewRedisClient parses a redis:// URL and applies connection-level timeouts.
func NewRedisClient(url string, timeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout
	return redis.NewClient(opts), nil
}

func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	settings := redisSettings{name: "redis-cache", timeout: defaultOpTimeout, openInterval: 30 * time.Second}
	for _, opt := range opts {
		opt(&settings)
	}

	var st gobreaker.Settings
	st.Name = settings.name
	st.Timeout = settings.openInterval
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 3 && failureRatio >= 0.6
	}
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, redis.Nil)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		obs.SetBreakerState(name, int(to))
		log.Warn().Str("component", "cache").Str("breaker", name).
			Str("from", from.String()).Str("to", to.String()).Msg("cache breaker state changed")
	}

	return &RedisStore{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[[]byte](st),
		timeout: settings.timeout,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.do(ctx, func(ctx context.Context) ([]byte, error) {
		return s.client.Get(ctx, key).Bytes()
	})
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.do(ctx, func(ctx context.Context) ([]byte, error) {
		return nil, s.client.Set(ctx, key, value, ttl).Err()
	})
	return err
}

func (s *RedisStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	out, err := s.do(ctx, func(ctx context.Context) ([]byte, error) {
		ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	})
	if err != nil {
		return false, err
	}
	return len(out) == 1 && out[0] == 1, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.do(ctx, func(ctx context.Context) ([]byte, error) {
		return nil, s.client.Del(ctx, keys...).Err()
	})
	return err
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	out, err := s.do(ctx, func(ctx context.Context) ([]byte, error) {
		n, err := s.client.Exists(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	})
	if err != nil {
		return false, err
	}
	return len(out) == 1 && out[0] == 1, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	_, err := s.do(ctx, func(ctx context.Context) ([]byte, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}

func (s *RedisStore) do(ctx context.Context, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	out, err := s.breaker.Execute(func() ([]byte, error) {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return fn(opCtx)
	})
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, redis.Nil):
		return nil, ErrMiss
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
