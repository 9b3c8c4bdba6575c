package config

import "time"

// CacheConfig defines settings for the GET response cache.  When Enabled
// is false or no Redis client is configured, caching is disabled.  TTL is
// an upper bound only; entries are invalidated eagerly when a mutation
// commits.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads cache settings from the environment with defaults.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     envDur("CACHE_TTL", 30*time.Second),
		Prefix:  envStr("CACHE_PREFIX", "cache"),
	}
}
