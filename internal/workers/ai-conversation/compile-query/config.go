package compilequery

import "time"

type Config struct {
	Timeout time.Duration
	// FailOnInvalid throws QUERY_VALIDATION_FAILED instead of completing the
	// job when the compiled query did not validate.
	FailOnInvalid bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 45 * time.Second,
	}
}
