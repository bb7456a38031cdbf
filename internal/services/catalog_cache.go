package services

import (
	"context"
	"fmt"
	"time"

	"fambudget/internal/cache"
	"fambudget/internal/core"
)

// CategoryReader supplies the category catalog. Rule and ledger validation
// read it on every create/update.
type CategoryReader interface {
	GetCategory(ctx context.Context, familyID, id int64) (core.Category, error)
}

// CachedCatalog wraps a CategoryReader with a TTL/LRU cache. Categories change
// rarely and are read on every rule or transaction write, so a short TTL keeps
// the hot path off the database without serving stale kinds for long.
type CachedCatalog struct {
	reader CategoryReader
	cache  *cache.LRU[core.Category]
}

func NewCachedCatalog(reader CategoryReader, maxSize int, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		reader: reader,
		cache:  cache.NewLRU[core.Category](maxSize, ttl),
	}
}

func (c *CachedCatalog) GetCategory(ctx context.Context, familyID, id int64) (core.Category, error) {
	key := catalogKey(familyID, id)
	if cat, ok := c.cache.Get(key); ok {
		return cat, nil
	}

	cat, err := c.reader.GetCategory(ctx, familyID, id)
	if err != nil {
		return core.Category{}, err
	}

	c.cache.Set(key, cat)
	return cat, nil
}

// Invalidate drops a cached category after an update or delete.
func (c *CachedCatalog) Invalidate(familyID, id int64) {
	c.cache.Delete(catalogKey(familyID, id))
}

// StartSweeper begins periodic expiry cleanup of the backing cache.
func (c *CachedCatalog) StartSweeper(interval time.Duration) {
	c.cache.StartSweeper(interval)
}

// StopSweeper stops the cleanup goroutine.
func (c *CachedCatalog) StopSweeper() {
	c.cache.StopSweeper()
}

func catalogKey(familyID, id int64) string {
	return fmt.Sprintf("%d/%d", familyID, id)
}
