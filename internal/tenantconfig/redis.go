package tenantconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/telemetry"
)

const defaultCacheTTL = 5 * time.Minute

// RedisConfig holds the connection settings of the config cache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// NewRedisClient creates a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// RedisCache is a read-through cache in front of another Provider.
//
// Redis failures never fail a lookup; they fall through to the wrapped provider.
type RedisCache struct {
	client *redis.Client
	next   Provider
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps next with a Redis cache.
func NewRedisCache(client *redis.Client, next Provider, cfg RedisConfig) *RedisCache {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "assettrack:tenantconfig:"
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaultCacheTTL
	}
	return &RedisCache{client: client, next: next, prefix: cfg.KeyPrefix, ttl: cfg.TTL}
}

// RecoverableDefaults implements Provider.
func (c *RedisCache) RecoverableDefaults(ctx context.Context, tenant string) (map[models.Category]bool, error) {
	logger := zerolog.Ctx(ctx)
	metrics := telemetry.GetMetrics()
	key := c.key(tenant)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached map[models.Category]bool
		if err := json.Unmarshal(data, &cached); err == nil {
			metrics.ConfigCacheHitsTotal.Add(ctx, 1)
			return cached, nil
		}
		logger.Warn().Str("tenant", tenant).Msg("Discarding malformed cached tenant config")
	case !errors.Is(err, redis.Nil):
		logger.Warn().Err(err).Str("tenant", tenant).Msg("Tenant config cache read failed")
	}
	metrics.ConfigCacheMissesTotal.Add(ctx, 1)

	defaults, err := c.next.RecoverableDefaults(ctx, tenant)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tenant config: %w", err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		logger.Warn().Err(err).Str("tenant", tenant).Msg("Tenant config cache write failed")
	}

	return defaults, nil
}

// Invalidate drops the cached settings of tenant.
func (c *RedisCache) Invalidate(ctx context.Context, tenant string) error {
	return c.client.Del(ctx, c.key(tenant)).Err()
}

func (c *RedisCache) key(tenant string) string {
	return c.prefix + tenant
}
