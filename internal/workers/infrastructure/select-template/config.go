package selecttemplate

import "time"

type Config struct {
	DefaultGovernment int `mapstructure:"default_government"`
	Timeout           time.Duration
}

func LoadConfig() *Config {
	return &Config{
		DefaultGovernment: 37,
		Timeout:           5 * time.Second,
	}
}
