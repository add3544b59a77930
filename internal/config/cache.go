package config

import "time"

// CacheConfig defines TTLs for the read-through catalog cache. Schedule
// listings change occasionally and get a minutes-scale TTL; seat masters
// are immutable once created and are cached for a day. Invalidation is
// never pushed; staleness is bounded by TTL alone.
type CacheConfig struct {
	Enabled     bool
	ScheduleTTL time.Duration
	SeatTTL     time.Duration
	Prefix      string
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
// Defaults are used when variables are not set.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:     getenv("CACHE_ENABLED", "true") == "true",
		ScheduleTTL: parseDur(getenv("CACHE_SCHEDULE_TTL", "5m")),
		SeatTTL:     parseDur(getenv("CACHE_SEAT_TTL", "24h")),
		Prefix:      getenv("CACHE_PREFIX", "cache"),
	}
}
