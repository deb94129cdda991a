package cache

import (
	"fmt"
	"sync"
	"testing"
)

func fp(s string) Fingerprint {
	return Sum([]byte(s))
}

func TestLRUGetPut(t *testing.T) {
	c := New[string](4)

	if _, ok := c.Get(fp("a")); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put(fp("a"), "alpha")
	got, ok := c.Get(fp("a"))
	if !ok || got != "alpha" {
		t.Fatalf("Get(a) = %q, %v; want alpha, true", got, ok)
	}

	// Replacing an existing key must not grow the cache.
	c.Put(fp("a"), "alpha2")
	if c.Len() != 1 {
		t.Fatalf("Len() = %d after replace; want 1", c.Len())
	}
	if got, _ := c.Get(fp("a")); got != "alpha2" {
		t.Fatalf("Get(a) = %q after replace; want alpha2", got)
	}
}

func TestLRUEviction(t *testing.T) {
	c := New[int](3)
	for i := range 3 {
		c.Put(fp(fmt.Sprintf("k%d", i)), i)
	}

	// Touch k0 so k1 becomes the eviction candidate.
	if _, ok := c.Get(fp("k0")); !ok {
		t.Fatal("k0 should be present")
	}

	c.Put(fp("k3"), 3)

	if _, ok := c.Get(fp("k1")); ok {
		t.Error("k1 should have been evicted")
	}
	for _, k := range []string{"k0", "k2", "k3"} {
		if _, ok := c.Get(fp(k)); !ok {
			t.Errorf("%s should still be present", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d; want 3", c.Len())
	}
}

func TestLRUCapacityClamp(t *testing.T) {
	c := New[int](0)
	c.Put(fp("a"), 1)
	c.Put(fp("b"), 2)
	if c.Len() != 1 {
		t.Fatalf("Len() = %d with clamped capacity; want 1", c.Len())
	}
}

func TestLRUStats(t *testing.T) {
	c := New[int](2)
	c.Put(fp("a"), 1)
	c.Get(fp("a"))
	c.Get(fp("a"))
	c.Get(fp("b"))

	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Fatalf("Stats() = %d hits, %d misses; want 2, 1", hits, misses)
	}
}

func TestSumDistinguishesBoundaries(t *testing.T) {
	// Field separation: ("ab","c") and ("a","bc") must not collide.
	if Sum([]byte("ab"), []byte("c")) == Sum([]byte("a"), []byte("bc")) {
		t.Fatal("fingerprints for differently split inputs should differ")
	}
	if Sum([]byte("ab")) != Sum([]byte("ab")) {
		t.Fatal("fingerprint must be deterministic")
	}
}

func TestLRUConcurrentAccess(t *testing.T) {
	c := New[int](16)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				key := fp(fmt.Sprintf("k%d", (g+i)%32))
				c.Put(key, i)
				c.Get(key)
			}
		}()
	}
	wg.Wait()

	if c.Len() > 16 {
		t.Fatalf("Len() = %d exceeds capacity 16", c.Len())
	}
}
