package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/helmsync/pkg/core"
)

func TestProfileCache_NewProfileCache(t *testing.T) {
	cache := NewProfileCache()

	require.NotNil(t, cache)
	assert.NotNil(t, cache.Profiles)
	assert.Equal(t, 0, cache.Len())
}

func TestProfileCache_SetAndGet(t *testing.T) {
	cache := NewProfileCache()

	cache.Set(core.EconomyProfile{UserID: "alice", Rank: 3, Credits: 120})

	got, ok := cache.Get("alice")
	require.True(t, ok)
	assert.Equal(t, 3, got.Rank)
	assert.Equal(t, int64(120), got.Credits)
}

func TestProfileCache_Get_NotFound(t *testing.T) {
	cache := NewProfileCache()

	_, ok := cache.Get("nobody")
	assert.False(t, ok)
}

func TestProfileCache_SetOverwrites(t *testing.T) {
	cache := NewProfileCache()

	cache.Set(core.EconomyProfile{UserID: "alice", Credits: 10})
	cache.Set(core.EconomyProfile{UserID: "alice", Credits: 25})

	got, _ := cache.Get("alice")
	assert.Equal(t, int64(25), got.Credits)
	assert.Equal(t, 1, cache.Len())
}

func TestProfileCache_Rank(t *testing.T) {
	cache := NewProfileCache()
	cache.Set(core.EconomyProfile{UserID: "alice", Rank: 4})

	assert.Equal(t, 4, cache.Rank("alice"))
	assert.Equal(t, 1, cache.Rank("bob"))
}

func TestProfileCache_DeleteAndReset(t *testing.T) {
	cache := NewProfileCache()
	cache.Set(core.EconomyProfile{UserID: "alice"})
	cache.Set(core.EconomyProfile{UserID: "bob"})

	cache.Delete("alice")
	_, ok := cache.Get("alice")
	assert.False(t, ok)
	assert.Equal(t, 1, cache.Len())

	cache.Reset()
	assert.Equal(t, 0, cache.Len())
}

func TestProfileCache_ConcurrentAccess(t *testing.T) {
	cache := NewProfileCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			cache.Set(core.EconomyProfile{UserID: "u", Credits: int64(n)})
		}(i)
		go func() {
			defer wg.Done()
			cache.Get("u")
		}()
	}
	wg.Wait()

	_, ok := cache.Get("u")
	assert.True(t, ok)
}

func TestSafeCounter(t *testing.T) {
	var c SafeCounter
	assert.Equal(t, 0, c.Value())

	c.Inc()
	c.Inc()
	assert.Equal(t, 2, c.Value())

	c.Dec()
	assert.Equal(t, 1, c.Value())

	c.Set(10)
	assert.Equal(t, 10, c.Value())
}

func TestSafeCounter_Concurrent(t *testing.T) {
	var c SafeCounter
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, c.Value())
}
