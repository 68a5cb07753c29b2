package filterquery

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryProgramCache(t *testing.T) {
	c := NewInMemoryProgramCache(DefaultCacheConfig())

	if _, ok := c.Get("true"); ok {
		t.Fatal("Get() on empty cache should miss")
	}

	c.Set("true", nil)
	if _, ok := c.Get("true"); !ok {
		t.Error("Get() should hit after Set()")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}

	c.Invalidate()
	if c.Len() != 0 {
		t.Errorf("Len() after Invalidate() = %d, want 0", c.Len())
	}
	if _, ok := c.Get("true"); ok {
		t.Error("Get() after Invalidate() should miss")
	}
}

func TestInMemoryProgramCacheTTL(t *testing.T) {
	c := NewInMemoryProgramCache(CacheConfig{TTL: 20 * time.Millisecond})

	c.Set("expr", nil)
	if _, ok := c.Get("expr"); !ok {
		t.Fatal("Get() should hit before the TTL")
	}

	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Get("expr"); ok {
		t.Error("Get() should miss after the TTL")
	}
}

func TestInMemoryProgramCacheEviction(t *testing.T) {
	c := NewInMemoryProgramCache(CacheConfig{MaxEntries: 2})

	c.Set("a", nil)
	time.Sleep(2 * time.Millisecond)
	c.Set("b", nil)
	time.Sleep(2 * time.Millisecond)

	// Overwriting an existing key never evicts
	c.Set("b", nil)
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}

	c.Set("c", nil)
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	for _, k := range []string{"b", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("entry %q should still be cached", k)
		}
	}
}

func TestInMemoryProgramCacheConcurrent(t *testing.T) {
	c := NewInMemoryProgramCache(CacheConfig{MaxEntries: 8})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%10))
			c.Set(key, nil)
			c.Get(key)
			c.Len()
		}(i)
	}
	wg.Wait()

	if c.Len() > 8 {
		t.Errorf("Len() = %d, exceeds MaxEntries", c.Len())
	}
}
