package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IntentCache remembers intents by the client's Idempotency-Key so a retried
// request does not create a second payment.
type IntentCache interface {
	Get(ctx context.Context, key string) (*Intent, bool, error)
	Set(ctx context.Context, key string, in *Intent, ttl time.Duration) error
}

type RedisIntentCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisIntentCache(client *redis.Client, logger *zap.Logger) *RedisIntentCache {
	return &RedisIntentCache{client: client, logger: logger.Named("IntentCache")}
}

func (c *RedisIntentCache) Get(ctx context.Context, key string) (*Intent, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		c.logger.Error("Failed to get intent from redis", zap.String("key", key), zap.Error(err))
		return nil, false, fmt.Errorf("failed to get intent from redis: %w", err)
	}

	var in Intent
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached intent: %w", err)
	}
	return &in, true, nil
}

func (c *RedisIntentCache) Set(ctx context.Context, key string, in *Intent, ttl time.Duration) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, b, ttl).Err(); err != nil {
		c.logger.Error("Failed to store intent in redis", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to store intent in redis: %w", err)
	}
	return nil
}

// NopIntentCache never hits. Used when Redis is not configured.
type NopIntentCache struct{}

func (NopIntentCache) Get(context.Context, string) (*Intent, bool, error)        { return nil, false, nil }
func (NopIntentCache) Set(context.Context, string, *Intent, time.Duration) error { return nil }
