package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetSet(t *testing.T) {
	c := NewCache(time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("key", []byte("payload"))
	data, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), data)
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)

	c.Set("key", []byte("payload"))
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestCacheStats(t *testing.T) {
	c := NewCache(time.Minute)

	c.Set("key", []byte("payload"))
	c.Get("key")
	c.Get("absent")

	stats := c.Stats()
	assert.Equal(t, 1, stats["items"])
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
}

func TestKey(t *testing.T) {
	payload := []byte(`{"age":63}`)

	assert.Equal(t, Key("explain", payload), Key("explain", payload),
		"same endpoint and payload must produce the same key")
	assert.NotEqual(t, Key("explain", payload), Key("predict", payload),
		"different endpoints must not collide")
	assert.NotEqual(t, Key("explain", payload), Key("explain", []byte(`{"age":64}`)))
}
