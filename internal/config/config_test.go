package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestFromLookupRequiresSigningConfig(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{"JWT_ALGORITHM": "HS256"}))
	require.ErrorIs(t, err, ErrMissingSigningConfig)

	_, err = FromLookup(lookupFrom(map[string]string{"JWT_SECRET_KEY": "s3cret"}))
	require.ErrorIs(t, err, ErrMissingSigningConfig)
}

func TestFromLookupRejectsNonHMACAlgorithm(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{
		"JWT_SECRET_KEY": "s3cret",
		"JWT_ALGORITHM":  "RS256",
	}))
	require.Error(t, err)
}

func TestFromLookupDefaults(t *testing.T) {
	conf, err := FromLookup(lookupFrom(map[string]string{
		"JWT_SECRET_KEY": "s3cret",
		"JWT_ALGORITHM":  "hs256",
	}))
	require.NoError(t, err)
	require.Equal(t, "HS256", conf.JWT.Algorithm)
	require.Equal(t, 15*time.Minute, conf.JWT.AccessTTL)
	require.Equal(t, 7*24*time.Hour, conf.JWT.RefreshTTL)
	require.Equal(t, 300*time.Second, conf.Cache.PermissionTTL)
	require.Equal(t, 30*time.Minute, conf.Cache.UserTTL)
	require.Equal(t, 30*time.Second, conf.Cache.BreakerOpen)
	require.Equal(t, "mongo", conf.StoreKind)
	require.Empty(t, conf.Cache.RedisURL)
	require.False(t, conf.Cache.BlacklistFailClose)
}

func TestFromLookupOverrides(t *testing.T) {
	conf, err := FromLookup(lookupFrom(map[string]string{
		"JWT_SECRET_KEY":              "s3cret",
		"JWT_ALGORITHM":               "HS512",
		"ACCESS_TOKEN_EXPIRE_MINUTES": "30",
		"REFRESH_TOKEN_EXPIRE_DAYS":   "14",
		"KAFKA_BROKERS":               "k1:9092, k2:9092,",
		"BLACKLIST_FAIL_CLOSED":       "true",
		"STORE_BACKEND":               "memory",
		"CACHE_USER_TTL_SECONDS":      "60",
		"CACHE_BREAKER_OPEN_SECONDS":  "5",
	}))
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, conf.JWT.AccessTTL)
	require.Equal(t, 14*24*time.Hour, conf.JWT.RefreshTTL)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, conf.Kafka.Brokers)
	require.True(t, conf.Cache.BlacklistFailClose)
	require.Equal(t, "memory", conf.StoreKind)
	require.Equal(t, time.Minute, conf.Cache.UserTTL)
	require.Equal(t, 5*time.Second, conf.Cache.BreakerOpen)
}

func TestFromLookupRejectsBadNumbers(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{
		"JWT_SECRET_KEY":              "s3cret",
		"JWT_ALGORITHM":               "HS256",
		"ACCESS_TOKEN_EXPIRE_MINUTES": "soon",
	}))
	require.Error(t, err)

	_, err = FromLookup(lookupFrom(map[string]string{
		"JWT_SECRET_KEY":              "s3cret",
		"JWT_ALGORITHM":               "HS256",
		"ACCESS_TOKEN_EXPIRE_MINUTES": "0",
	}))
	require.Error(t, err)
}
