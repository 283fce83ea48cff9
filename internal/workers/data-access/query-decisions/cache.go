package querydecisions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"gov-decisions-workers/internal/common/database"
)

const cacheKeyPrefix = "decisions:query:"

// ResultCache keeps query results in Redis keyed by the bound SQL and its
// arguments.
type ResultCache struct {
	redis *database.RedisClient
	ttl   time.Duration
}

func NewResultCache(rc *database.RedisClient, ttl time.Duration) *ResultCache {
	if rc == nil || ttl <= 0 {
		return nil
	}
	return &ResultCache{redis: rc, ttl: ttl}
}

func cacheKey(sql string, args []interface{}) string {
	h := sha256.New()
	h.Write([]byte(sql))
	b, _ := json.Marshal(args)
	h.Write(b)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached output. A miss is (nil, nil).
func (c *ResultCache) Get(ctx context.Context, key string) (*Output, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := c.redis.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out Output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *ResultCache) Set(ctx context.Context, key string, out *Output) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return c.redis.Client.Set(ctx, key, b, c.ttl).Err()
}
