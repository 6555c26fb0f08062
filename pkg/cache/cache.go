package cache

import (
	"sync"
	"time"
)

type item struct {
	value     interface{}
	expiresAt time.Time
}

func (it *item) expired() bool {
	return time.Now().After(it.expiresAt)
}

// Cache is a thread-safe in-memory cache with TTL support.
type Cache struct {
	mu          sync.RWMutex
	items       map[string]*item
	defaultTTL  time.Duration
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewCache creates a cache whose entries expire after defaultTTL. A
// background goroutine evicts expired entries; call Stop to end it.
func NewCache(defaultTTL time.Duration) *Cache {
	c := &Cache{
		items:       make(map[string]*item),
		defaultTTL:  defaultTTL,
		stopCleanup: make(chan struct{}),
	}
	go c.cleanup(defaultTTL / 2)
	return c
}

// Get retrieves a value, reporting false for missing or expired keys.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, exists := c.items[key]
	if !exists || it.expired() {
		return nil, false
	}
	return it.value, true
}

// Set stores a value with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &item{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*item)
}

// Size returns the number of stored entries, expired ones included.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache) cleanup(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			for key, it := range c.items {
				if it.expired() {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}
