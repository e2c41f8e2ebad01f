package eventfetcher

import "time"

// Config holds the tunables for a Scheduler.
type Config struct {
	// ChainAPIBackoff is slept between a transient RPC failure and the
	// next retry at a halved chunk size.
	ChainAPIBackoff time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ChainAPIBackoff: 2 * time.Second,
	}
}

// Option modifies a Config.
type Option func(*Config)

// WithChainAPIBackoff overrides the backoff slept between retries.
func WithChainAPIBackoff(d time.Duration) Option {
	return func(c *Config) { c.ChainAPIBackoff = d }
}
