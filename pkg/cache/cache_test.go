package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("k", "v")
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.SetWithTTL("k", "v", 10*time.Millisecond)
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestDeleteAndClear(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCleanupEvictsExpired(t *testing.T) {
	c := NewCache(20 * time.Millisecond)
	defer c.Stop()

	c.Set("k", "v")
	assert.Eventually(t, func() bool {
		return c.Size() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestStopIsIdempotent(t *testing.T) {
	c := NewCache(time.Minute)
	c.Stop()
	c.Stop()
}
