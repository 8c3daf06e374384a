package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"amsf/internal/validation/models"
)

const resultKeyPrefix = "amsf:validation:"

// RedisCache keeps remote results for ttl.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns nil without error on a miss.
func (c *RedisCache) Get(ctx context.Context, digest string) (*models.Result, error) {
	raw, err := c.client.Get(ctx, resultKeyPrefix+digest).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached validation result: %w", err)
	}
	var res models.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode cached validation result: %w", err)
	}
	return &res, nil
}

func (c *RedisCache) Set(ctx context.Context, digest string, result models.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode validation result: %w", err)
	}
	return c.client.Set(ctx, resultKeyPrefix+digest, raw, c.ttl).Err()
}
