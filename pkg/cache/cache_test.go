package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenericCache_SetGet(t *testing.T) {
	c := New(NoExpiration)
	c.Set("step:database", "installed")

	v, ok := c.Get("step:database")
	assert.True(t, ok)
	assert.Equal(t, "installed", v)

	_, ok = c.Get("step:missing")
	assert.False(t, ok)
}

func TestGenericCache_TTLExpiry(t *testing.T) {
	c := New(NoExpiration)
	c.SetWithTTL("ephemeral", 1, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("ephemeral")
	assert.False(t, ok)
}

func TestGenericCache_DeleteAndCount(t *testing.T) {
	c := New(NoExpiration)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 2, c.Count())

	c.Delete("a")
	assert.False(t, c.Has("a"))
	assert.Equal(t, 1, c.Count())

	c.Flush()
	assert.Equal(t, 0, c.Count())
}

func TestGenericCache_Range(t *testing.T) {
	c := New(NoExpiration)
	c.Set("x", 1)
	c.Set("y", 2)

	seen := map[string]interface{}{}
	c.Range(func(key string, value interface{}) bool {
		seen[key] = value
		return true
	})
	assert.Len(t, seen, 2)
	assert.Equal(t, 1, seen["x"])
}
