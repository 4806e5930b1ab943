package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, zerolog.Nop()), mr
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", payload{Name: "a", Score: 1.5}, time.Minute)

	var got payload
	if !c.Get(ctx, "k", &got) {
		t.Fatal("expected a cache hit")
	}
	if got.Name != "a" || got.Score != 1.5 {
		t.Errorf("got %+v", got)
	}
}

func TestCacheMiss(t *testing.T) {
	c, _ := testCache(t)
	var got payload
	if c.Get(context.Background(), "absent", &got) {
		t.Error("expected a miss for an absent key")
	}
}

func TestCacheTTL(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", payload{Name: "a"}, time.Minute)
	mr.FastForward(2 * time.Minute)

	var got payload
	if c.Get(ctx, "k", &got) {
		t.Error("expected expiry after the TTL elapsed")
	}
}

func TestCacheDelete(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", payload{Name: "a"}, time.Minute)
	c.Delete(ctx, "k")

	var got payload
	if c.Get(ctx, "k", &got) {
		t.Error("expected a miss after delete")
	}
}

func TestCacheCorruptEntryEvicted(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	mr.Set("k", "{not json")

	var got payload
	if c.Get(ctx, "k", &got) {
		t.Error("corrupt entry must read as a miss")
	}
	if mr.Exists("k") {
		t.Error("corrupt entry must be evicted")
	}
}

func TestCacheNilSafe(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	var got payload
	if c.Get(ctx, "k", &got) {
		t.Error("nil cache must miss")
	}
	c.Set(ctx, "k", payload{}, time.Minute)
	c.Delete(ctx, "k")
}
