package cache

import (
	"sync"

	"github.com/OCAP2/helmsync/pkg/core"
)

// ProfileCache caches economy profiles of connected users so rank checks on
// the hot path do not hit storage. Writers refresh it after every adjustment.
type ProfileCache struct {
	m        sync.RWMutex
	Profiles map[string]core.EconomyProfile
}

func NewProfileCache() *ProfileCache {
	return &ProfileCache{
		Profiles: make(map[string]core.EconomyProfile),
	}
}

func (c *ProfileCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.Profiles = make(map[string]core.EconomyProfile)
}

func (c *ProfileCache) Get(userID string) (core.EconomyProfile, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	p, ok := c.Profiles[userID]
	return p, ok
}

func (c *ProfileCache) Set(p core.EconomyProfile) {
	c.m.Lock()
	defer c.m.Unlock()
	c.Profiles[p.UserID] = p
}

func (c *ProfileCache) Delete(userID string) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.Profiles, userID)
}

// Rank returns the cached rank of userID, or 1 when unknown.
func (c *ProfileCache) Rank(userID string) int {
	if p, ok := c.Get(userID); ok {
		return p.Rank
	}
	return 1
}

func (c *ProfileCache) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.Profiles)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

func (c *SafeCounter) Dec() {
	c.mu.Lock()
	c.v--
	c.mu.Unlock()
}
