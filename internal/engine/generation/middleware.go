package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// CachedGenerator memoizes successful replies by request content.
type CachedGenerator struct {
	next  Generator
	cache *gocache.Cache
}

func NewCachedGenerator(next Generator, ttl time.Duration) *CachedGenerator {
	return &CachedGenerator{next: next, cache: gocache.New(ttl, 2*ttl)}
}

func (c *CachedGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	key := cacheKey(req)
	if v, ok := c.cache.Get(key); ok {
		return cloneResponse(v.(*Response)), nil
	}
	resp, err := c.next.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, cloneResponse(resp))
	return resp, nil
}

func cacheKey(req Request) string {
	raw, _ := json.Marshal(req)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func cloneResponse(r *Response) *Response {
	cp := *r
	cp.Parameters = make(map[string]interface{}, len(r.Parameters))
	for k, v := range r.Parameters {
		if list, ok := v.([]interface{}); ok {
			v = append([]interface{}(nil), list...)
		}
		cp.Parameters[k] = v
	}
	return &cp
}

// LimitedGenerator bounds the request rate to the generation service.
type LimitedGenerator struct {
	next    Generator
	limiter *rate.Limiter
}

func NewLimitedGenerator(next Generator, perSecond float64, burst int) *LimitedGenerator {
	if burst <= 0 {
		burst = 1
	}
	return &LimitedGenerator{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *LimitedGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, ErrGenerationTimeout
	}
	return l.next.Generate(ctx, req)
}
