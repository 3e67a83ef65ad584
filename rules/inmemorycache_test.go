package rules

import (
	"testing"
	"time"
)

func TestInMemoryRulesCacheMissBeforeSet(t *testing.T) {
	c := NewInMemoryRulesCache(DefaultCacheConfig())

	if c.IsValid() {
		t.Error("new cache should be invalid")
	}
	if c.Get() != nil {
		t.Error("Get() on empty cache should return nil")
	}
}

func TestInMemoryRulesCacheSetSortsAgenda(t *testing.T) {
	c := NewInMemoryRulesCache(DefaultCacheConfig())

	c.Set([]*Rule{
		{ID: "low", Salience: 1, Order: 1},
		{ID: "high", Salience: 9, Order: 2},
	})

	got := c.Get()
	if len(got) != 2 || got[0].ID != "high" || got[1].ID != "low" {
		t.Errorf("Get() = %v, want [high low]", got)
	}
}

func TestInMemoryRulesCacheReturnsCopy(t *testing.T) {
	c := NewInMemoryRulesCache(DefaultCacheConfig())
	c.Set([]*Rule{{ID: "a"}, {ID: "b"}})

	got := c.Get()
	got[0] = &Rule{ID: "changed"}

	if c.Get()[0].ID == "changed" {
		t.Error("Get() should return a copy of the agenda")
	}
}

func TestInMemoryRulesCacheInvalidate(t *testing.T) {
	c := NewInMemoryRulesCache(DefaultCacheConfig())
	c.Set([]*Rule{{ID: "a"}})

	c.Invalidate()

	if c.IsValid() || c.Get() != nil {
		t.Error("cache should miss after Invalidate()")
	}
}

func TestInMemoryRulesCacheTTL(t *testing.T) {
	c := NewInMemoryRulesCache(CacheConfig{TTL: 10 * time.Millisecond})
	c.Set([]*Rule{{ID: "a"}})

	if !c.IsValid() {
		t.Fatal("cache should be valid right after Set()")
	}

	time.Sleep(20 * time.Millisecond)

	if c.IsValid() || c.Get() != nil {
		t.Error("cache should expire after TTL")
	}
}

func TestEngineRefreshesAgendaAfterMutation(t *testing.T) {
	engine, _ := NewEngine(NewInMemoryRuleStore(), WithCache(NewInMemoryRulesCache(DefaultCacheConfig())))

	_ = engine.AddRule(&Rule{ID: "a", Order: 1, Active: true})
	_ = engine.AddRule(&Rule{ID: "b", Order: 2, Salience: 3, Active: true})

	agenda, err := engine.Rules()
	if err != nil {
		t.Fatalf("Rules() failed: %v", err)
	}
	if len(agenda) != 2 || agenda[0].ID != "b" {
		t.Errorf("agenda = %v, want b first", agenda)
	}
}
