package querydecisions

import "time"

type Config struct {
	Timeout  time.Duration
	MaxRows  int
	CacheTTL time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  30 * time.Second,
		MaxRows:  500,
		CacheTTL: 5 * time.Minute,
	}
}
