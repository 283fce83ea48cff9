package database

import (
	"context"
	"fmt"
	"time"

	"gov-decisions-workers/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client used for conversation history and
// result caching.
type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &RedisClient{Client: rdb}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// Tail returns the last n elements of the list at key, oldest first.
func (c *RedisClient) Tail(ctx context.Context, key string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	return c.Client.LRange(ctx, key, int64(-n), -1).Result()
}

// AppendCapped pushes value onto the list at key and trims it to the newest
// max elements.
func (c *RedisClient) AppendCapped(ctx context.Context, key string, value interface{}, max int, ttl time.Duration) error {
	pipe := c.Client.TxPipeline()
	pipe.RPush(ctx, key, value)
	if max > 0 {
		pipe.LTrim(ctx, key, int64(-max), -1)
	}
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
