package rules

import "time"

// RulesCache holds the active rules of an engine in agenda order, so that
// sessions do not hit the store for every record.
type RulesCache interface {
	// Get returns the cached agenda, or nil on a miss or after expiry
	Get() []*Rule

	// Set stores the agenda
	Set(rules []*Rule)

	// Invalidate drops the agenda; the next Get misses
	Invalidate()

	IsValid() bool
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live of the cached agenda.
	// 0 means no expiry; the engine invalidates on every mutation.
	TTL time.Duration
}

// DefaultCacheConfig returns the configuration used by NewEngine.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
