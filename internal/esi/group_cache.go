package esi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sicney/eve-mo/internal/logger"
	"golang.org/x/sync/singleflight"
)

// groupTTL is used when ESI sends no usable Expires header.
const groupTTL = time.Hour

type groupCacheEntry struct {
	group   MarketGroup
	expires time.Time
}

// GroupCache is a Client whose market-group listing and details are kept in memory
// until the Expires time ESI reports for them. Repeated runs in one process then
// only re-fetch groups that expired. Concurrent fetches of one key are coalesced.
type GroupCache struct {
	*Client

	mu         sync.RWMutex
	groups     map[int32]groupCacheEntry
	ids        []int32
	idsExpires time.Time
	flight     singleflight.Group
	now        func() time.Time
}

// NewGroupCache wraps c with an empty group cache.
func NewGroupCache(c *Client) *GroupCache {
	return &GroupCache{
		Client: c,
		groups: make(map[int32]groupCacheEntry),
		now:    time.Now,
	}
}

// MarketGroupIDs returns the cached listing, re-listing once it expired.
// An empty listing is never cached.
func (gc *GroupCache) MarketGroupIDs(ctx context.Context) []int32 {
	gc.mu.RLock()
	if gc.ids != nil && gc.now().Before(gc.idsExpires) {
		ids := gc.ids
		gc.mu.RUnlock()
		return ids
	}
	gc.mu.RUnlock()

	v, _, _ := gc.flight.Do("ids", func() (interface{}, error) {
		ids, header := gc.Client.listMarketGroups(ctx)
		if len(ids) > 0 {
			gc.mu.Lock()
			gc.ids = ids
			gc.idsExpires = gc.expires(header)
			gc.mu.Unlock()
		}
		return ids, nil
	})
	return v.([]int32)
}

// MarketGroup returns the cached group, fetching it on a miss or after expiry.
// Failed fetches are not cached.
func (gc *GroupCache) MarketGroup(ctx context.Context, groupID int32) (MarketGroup, bool) {
	gc.mu.RLock()
	e, ok := gc.groups[groupID]
	gc.mu.RUnlock()
	if ok && gc.now().Before(e.expires) {
		return e.group, true
	}

	type result struct {
		group MarketGroup
		ok    bool
	}
	v, _, _ := gc.flight.Do(fmt.Sprintf("group:%d", groupID), func() (interface{}, error) {
		g, header, ok := gc.Client.fetchMarketGroup(ctx, groupID)
		if ok {
			gc.mu.Lock()
			gc.groups[groupID] = groupCacheEntry{group: g, expires: gc.expires(header)}
			gc.mu.Unlock()
		}
		return result{g, ok}, nil
	})
	r := v.(result)
	return r.group, r.ok
}

// Len returns the number of cached groups.
func (gc *GroupCache) Len() int {
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	return len(gc.groups)
}

// expires reads the Expires header, falling back to groupTTL.
func (gc *GroupCache) expires(h http.Header) time.Time {
	if h != nil {
		if exp := h.Get("Expires"); exp != "" {
			if t, err := http.ParseTime(exp); err == nil && t.After(gc.now()) {
				return t
			}
			logger.Debug("ESI", fmt.Sprintf("Ignoring Expires header %q", exp))
		}
	}
	return gc.now().Add(groupTTL)
}
