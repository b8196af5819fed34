package service

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cadenzalabs/cadenza/internal/cache"
	"github.com/cadenzalabs/cadenza/internal/catalog/domain"
	"github.com/cadenzalabs/cadenza/pkg/db/pagination"
)

// listingTTL bounds how stale a cached artist listing may get when a
// write happens on another replica.
const listingTTL = 30 * time.Second

type listingKey struct {
	artistID snowflake.ID
	version  uint64
	page     int
	pageSize int
}

type songPage struct {
	items []domain.Song
	meta  pagination.Meta
}

type albumPage struct {
	items []domain.Album
	meta  pagination.Meta
}

// listingCache memoizes artist catalog pages. Writes bump the artist's
// version, orphaning every cached page at once; orphans fall out via
// TTL.
type listingCache struct {
	mu       sync.RWMutex
	versions map[snowflake.ID]uint64

	songs  *cache.TTLCache[listingKey, songPage]
	albums *cache.TTLCache[listingKey, albumPage]
}

func newListingCache() *listingCache {
	return &listingCache{
		versions: make(map[snowflake.ID]uint64),
		songs:    cache.NewTTLCache[listingKey, songPage](),
		albums:   cache.NewTTLCache[listingKey, albumPage](),
	}
}

func (c *listingCache) key(artistID snowflake.ID, page pagination.Page) listingKey {
	c.mu.RLock()
	version := c.versions[artistID]
	c.mu.RUnlock()
	return listingKey{
		artistID: artistID,
		version:  version,
		page:     page.Page,
		pageSize: page.PageSize,
	}
}

func (c *listingCache) invalidate(artistID snowflake.ID) {
	c.mu.Lock()
	c.versions[artistID]++
	c.mu.Unlock()
}
