package searchdecisions

import "time"

type Config struct {
	Timeout     time.Duration
	DefaultSize int
	MaxResults  int
	CacheTTL    time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		DefaultSize: 20,
		MaxResults:  50,
		CacheTTL:    5 * time.Minute,
	}
}
