package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/kava-dev-proxy/logging"
)

func TestUnitTestRedisExpiration(t *testing.T) {
	tests := []struct {
		name       string
		expiration time.Duration
		fallback   time.Duration
		want       time.Duration
	}{
		{name: "explicit", expiration: time.Minute, fallback: time.Hour, want: time.Minute},
		{name: "no expiration", expiration: NoExpiration, fallback: time.Hour, want: 0},
		{name: "zero uses default", expiration: 0, fallback: time.Hour, want: time.Hour},
		{name: "zero without default", expiration: 0, want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, redisExpiration(tc.expiration, tc.fallback))
		})
	}
}

func TestUnitTestNewRedisCacheRequiresAddress(t *testing.T) {
	logger := logging.Nop()

	_, err := NewRedisCache(&RedisConfig{}, &logger)
	assert.Error(t, err)

	c, err := NewRedisCache(&RedisConfig{Address: "localhost:6379", DefaultExpiration: time.Minute}, &logger)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, c.defaultExpiration)
	require.NoError(t, c.Close())
}
