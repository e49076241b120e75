package credentials

import (
	"sync"
	"time"

	"github.com/example/fellowship-api/internal/persistence"
)

const defaultCacheTTL = 5 * time.Minute

// tokenCache is a mutex-guarded credential cache with per-entry expiry.
type tokenCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	credential persistence.CalendarCredential
	expiresAt  time.Time
}

func newTokenCache(ttl time.Duration, now func() time.Time) *tokenCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &tokenCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *tokenCache) get(userID string) (persistence.CalendarCredential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[userID]
	if !ok {
		return persistence.CalendarCredential{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, userID)
		return persistence.CalendarCredential{}, false
	}
	return entry.credential, true
}

func (c *tokenCache) put(userID string, cred persistence.CalendarCredential) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[userID] = cacheEntry{
		credential: cred,
		expiresAt:  c.now().Add(c.ttl),
	}
}

func (c *tokenCache) invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

func (c *tokenCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
