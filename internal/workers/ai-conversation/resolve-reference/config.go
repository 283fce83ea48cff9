package resolvereference

import "time"

type Config struct {
	Timeout time.Duration
	// FailOnError fails the job when resolution takes the error route
	// instead of completing it with the original text.
	FailOnError bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
	}
}
