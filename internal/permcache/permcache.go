// Package permcache caches per-user role and page permissions between
// requests. Entries past their TTL are still returned, flagged stale, so
// callers can serve the cached value while deciding whether to reload.
package permcache

import (
	"sync"
	"time"

	"github.com/opsdeck/opsdeck/internal/model"
)

const DefaultTTL = 5 * time.Minute

// Permissions is the cached view of what one user may do.
type Permissions struct {
	Role  model.UserRole
	Pages []string
}

type entry struct {
	perms    Permissions
	loadedAt time.Time
}

type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[int64]entry

	now func() time.Time // overridable in tests
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[int64]entry),
		now:     time.Now,
	}
}

// Get returns the cached permissions for the user. fresh reports whether the
// entry is within its TTL; ok reports whether an entry exists at all.
func (c *Cache) Get(userID int64) (perms Permissions, fresh, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[userID]
	if !ok {
		return Permissions{}, false, false
	}
	return e.perms, c.now().Sub(e.loadedAt) < c.ttl, true
}

// Set stores freshly loaded permissions for the user.
func (c *Cache) Set(userID int64, perms Permissions) {
	c.mu.Lock()
	c.entries[userID] = entry{perms: perms, loadedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate drops the cached entry for one user (role change, deactivation).
func (c *Cache) Invalidate(userID int64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// InvalidateAll drops every entry (bulk user import, restore).
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[int64]entry)
	c.mu.Unlock()
}
