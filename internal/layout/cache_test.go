package layout

import (
	"fmt"
	"sync"
	"testing"
)

func TestCache_FIFOEviction(t *testing.T) {
	c := NewCache(3)
	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("k%d", i), map[string]Position{"n": {X: float64(i)}})
	}

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	for _, gone := range []string{"k0", "k1"} {
		if _, ok := c.Get(gone); ok {
			t.Errorf("%s should have been evicted", gone)
		}
	}
	keys := c.Keys()
	want := []string{"k2", "k3", "k4"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
	}
}

func TestCache_RePutKeepsAge(t *testing.T) {
	c := NewCache(2)
	c.Put("a", map[string]Position{"n": {X: 1}})
	c.Put("b", map[string]Position{"n": {X: 2}})
	c.Put("a", map[string]Position{"n": {X: 10}})
	c.Put("c", map[string]Position{"n": {X: 3}})

	if _, ok := c.Get("a"); ok {
		t.Error("a was inserted first and should be evicted despite the overwrite")
	}
	if got, ok := c.Get("b"); !ok || got["n"].X != 2 {
		t.Errorf("Get(b) = %v, %v", got, ok)
	}
}

func TestCache_GetReturnsCopy(t *testing.T) {
	c := NewCache(1)
	src := map[string]Position{"n": {X: 1}}
	c.Put("k", src)
	src["n"] = Position{X: 99}

	got, _ := c.Get("k")
	got["n"] = Position{X: 42}

	again, _ := c.Get("k")
	if again["n"].X != 1 {
		t.Errorf("cached value mutated: %v", again["n"])
	}
}

func TestCache_DefaultCapacity(t *testing.T) {
	if got := NewCache(0).Capacity(); got != DefaultCacheSize {
		t.Errorf("Capacity() = %d, want %d", got, DefaultCacheSize)
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := NewCache(8)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%12)
			c.Put(key, map[string]Position{"n": {X: float64(i)}})
			c.Get(key)
		}(i)
	}
	wg.Wait()
	if c.Len() > 8 {
		t.Errorf("Len() = %d exceeds capacity", c.Len())
	}
}
