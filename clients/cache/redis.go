package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kava-labs/kava-dev-proxy/logging"
)

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	// DefaultExpiration applies to values stored with a zero expiration.
	// Zero keeps such values until they are deleted.
	DefaultExpiration time.Duration
}

// RedisCache keeps exchange history in Redis so it outlives the proxy
// process and can be read by every proxy pointed at the same server.
type RedisCache struct {
	client            *redis.Client
	defaultExpiration time.Duration
	logger            *logging.ServiceLogger
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(cfg *RedisConfig, logger *logging.ServiceLogger) (*RedisCache, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}

	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		defaultExpiration: cfg.DefaultExpiration,
		logger:            logger,
	}, nil
}

// Close closes the connections to redis.
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// redisExpiration maps a Cache expiration to the one passed to SET, where
// zero means the key never expires.
func redisExpiration(expiration, fallback time.Duration) time.Duration {
	switch {
	case expiration == NoExpiration:
		return 0
	case expiration > 0:
		return expiration
	case fallback > 0:
		return fallback
	default:
		return 0
	}
}

func (rc *RedisCache) Set(ctx context.Context, key string, data []byte, expiration time.Duration) error {
	ttl := redisExpiration(expiration, rc.defaultExpiration)

	if err := rc.client.Set(ctx, key, data, ttl).Err(); err != nil {
		rc.logger.Error().Err(err).Str("key", key).Msg("storing exchange in redis failed")
		return err
	}

	rc.logger.Trace().Str("key", key).Int("bytes", len(data)).Dur("ttl", ttl).Msg("stored exchange in redis")
	return nil
}

func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := rc.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrNotFound
	case err != nil:
		rc.logger.Error().Err(err).Str("key", key).Msg("reading exchange from redis failed")
		return nil, err
	}

	return data, nil
}

// Delete unlinks key, redis reclaims the memory in the background.
func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Unlink(ctx, key).Err()
}

func (rc *RedisCache) Healthcheck(ctx context.Context) error {
	if err := rc.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("error connecting to redis at %s: %w", rc.client.Options().Addr, err)
	}
	return nil
}
