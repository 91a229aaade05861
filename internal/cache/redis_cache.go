package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"sonara/backend/internal/domain"
)

type RedisPriceCache struct {
	client *redis.Client
}

func NewRedisPriceCache(addr string, password string, db int) *RedisPriceCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisPriceCache{client: client}
}

func (c *RedisPriceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisPriceCache) Close() error {
	return c.client.Close()
}

func (c *RedisPriceCache) Get(ctx context.Context, key string) (*domain.DailyPrice, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var price domain.DailyPrice
	if err := json.Unmarshal([]byte(val), &price); err != nil {
		return nil, false, err
	}
	return &price, true, nil
}

func (c *RedisPriceCache) Set(ctx context.Context, key string, value *domain.DailyPrice, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisPriceCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
