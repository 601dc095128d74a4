package cache

import (
	"sync"
	"time"

	"github.com/dealscout/dealscout/models"
)

// menuKey identifies one scraped menu page.
type menuKey struct {
	restaurant string
	url        string
}

type menuEntry struct {
	items   []models.MenuItem
	fetched time.Time
}

// Cache holds recently scraped menus in memory so repeat scrape requests
// within a caller-chosen freshness window skip the network entirely.
// Safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	menus      map[menuKey]menuEntry
	maxEntries int
}

// New creates a Cache bounded to maxEntries menus. Entries older than one
// hour are swept out every 5 minutes regardless of capacity.
func New(maxEntries int) *Cache {
	c := &Cache{
		menus:      make(map[menuKey]menuEntry),
		maxEntries: maxEntries,
	}
	go c.sweep()
	return c
}

// Get returns the cached menu for a restaurant page if it was fetched
// within the last maxAgeMs milliseconds. maxAgeMs <= 0 disables the
// lookup, forcing a fresh scrape.
func (c *Cache) Get(restaurant, url string, maxAgeMs int) ([]models.MenuItem, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.menus[menuKey{restaurant, url}]
	c.mu.RUnlock()

	if !ok || time.Since(e.fetched) > time.Duration(maxAgeMs)*time.Millisecond {
		return nil, false
	}
	return e.items, true
}

// Set stores a freshly scraped menu. At capacity the stalest entry is
// evicted first.
func (c *Cache) Set(restaurant, url string, items []models.MenuItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.menus) >= c.maxEntries {
		var oldest menuKey
		var oldestAt time.Time
		first := true
		for k, e := range c.menus {
			if first || e.fetched.Before(oldestAt) {
				oldest, oldestAt, first = k, e.fetched, false
			}
		}
		delete(c.menus, oldest)
	}

	c.menus[menuKey{restaurant, url}] = menuEntry{items: items, fetched: time.Now()}
}

// Len reports the current number of cached menus.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.menus)
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-1 * time.Hour)
		c.mu.Lock()
		for k, e := range c.menus {
			if e.fetched.Before(cutoff) {
				delete(c.menus, k)
			}
		}
		c.mu.Unlock()
	}
}
