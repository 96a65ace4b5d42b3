package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbc-network/vbcd/module/cache"
	"github.com/vbc-network/vbcd/module/metrics"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func TestTaggedCache_ExpiresUntouchedEntries(t *testing.T) {
	clk := &clock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	c := cache.NewTaggedCache[string, int]("test", metrics.NewNoopCollector(),
		cache.WithTargetAge(time.Minute),
		cache.WithClock(clk.Now))

	c.Add("stale", 1)
	c.Add("fresh", 2)

	clk.now = clk.now.Add(45 * time.Second)
	_, ok := c.Get("fresh")
	require.True(t, ok)

	clk.now = clk.now.Add(30 * time.Second)
	assert.Equal(t, 1, c.Expire())
	assert.False(t, c.Has("stale"))
	value, ok := c.Get("fresh")
	assert.True(t, ok)
	assert.Equal(t, 2, value)
}

func TestTaggedCache_TargetSize(t *testing.T) {
	c := cache.NewTaggedCache[int, int]("test", metrics.NewNoopCollector(), cache.WithTargetSize(3))
	for i := 0; i < 5; i++ {
		c.Add(i, i)
	}
	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Has(0), "least recently used entry is evicted")

	c.SetTargetSize(1)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Has(4))

	c.SetTargetSize(0)
	c.Add(5, 5)
	assert.Equal(t, 1, c.Len(), "size is clamped to one")

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestKeyCache(t *testing.T) {
	clk := &clock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}
	c := cache.NewKeyCache[string]("fullbelow", metrics.NewNoopCollector(),
		cache.WithTargetAge(time.Minute),
		cache.WithClock(clk.Now))

	assert.False(t, c.Touch("a"))
	c.Insert("a")
	assert.True(t, c.Touch("a"))
	assert.Equal(t, "fullbelow", c.Name())

	clk.now = clk.now.Add(2 * time.Minute)
	c.Sweep()
	assert.False(t, c.Has("a"))
}
