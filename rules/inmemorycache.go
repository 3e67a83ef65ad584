package rules

import (
	"sync"
	"time"
)

// InMemoryRulesCache keeps the agenda in process memory.
// Safe for concurrent use.
type InMemoryRulesCache struct {
	agenda   []*Rule
	cachedAt time.Time
	config   CacheConfig
	mu       sync.RWMutex
	valid    bool
}

func NewInMemoryRulesCache(config CacheConfig) *InMemoryRulesCache {
	return &InMemoryRulesCache{config: config}
}

// Get returns a copy of the cached agenda, or nil when invalid or expired.
func (c *InMemoryRulesCache) Get() []*Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.fresh() {
		return nil
	}

	out := make([]*Rule, len(c.agenda))
	copy(out, c.agenda)
	return out
}

// Set sorts rules into agenda order and stores them.
func (c *InMemoryRulesCache) Set(rules []*Rule) {
	agenda := make([]*Rule, len(rules))
	copy(agenda, rules)
	SortAgenda(agenda)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.agenda = agenda
	c.cachedAt = time.Now()
	c.valid = true
}

func (c *InMemoryRulesCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
	c.agenda = nil
}

func (c *InMemoryRulesCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.fresh()
}

// fresh must be called with mu held.
func (c *InMemoryRulesCache) fresh() bool {
	if !c.valid {
		return false
	}
	if c.config.TTL > 0 && time.Since(c.cachedAt) > c.config.TTL {
		return false
	}
	return true
}
