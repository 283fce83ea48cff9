package generation

import (
	"fmt"
	"time"

	"gov-decisions-workers/internal/common/config"
)

// New builds the generator described by cfg: the provider client, optionally
// wrapped by a rate limiter and a reply cache.
func New(cfg config.GenAIConfig) (Generator, error) {
	var g Generator
	switch cfg.Provider {
	case "", "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("genai base_url is required for the http provider")
		}
		g = NewHTTPGenerator(cfg.BaseURL, cfg.MaxRetries)
	case "openai":
		og, err := NewOpenAIGenerator(cfg.APIKey, cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		g = og
	default:
		return nil, fmt.Errorf("unknown genai provider %q", cfg.Provider)
	}

	if cfg.RateLimit > 0 {
		g = NewLimitedGenerator(g, cfg.RateLimit, cfg.Burst)
	}
	if cfg.CacheTTL > 0 {
		g = NewCachedGenerator(g, time.Duration(cfg.CacheTTL)*time.Second)
	}
	return g, nil
}
