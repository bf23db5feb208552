package memory

import (
	"time"

	"ai-knowledgebase-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

// CollectionCache memoizes describeCollection results. Entries are dropped
// whenever the collection is written to or a document is removed from it.
type CollectionCache struct {
	cache *cache.Cache
}

func NewCollectionCache(ttl time.Duration) *CollectionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CollectionCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CollectionCache) Save(collection string, docs []entity.CollectionDocument) {
	c.cache.Set(collection, docs, cache.DefaultExpiration)
}

func (c *CollectionCache) Get(collection string) ([]entity.CollectionDocument, bool) {
	if x, found := c.cache.Get(collection); found {
		return x.([]entity.CollectionDocument), true
	}
	return nil, false
}

func (c *CollectionCache) Invalidate(collection string) {
	c.cache.Delete(collection)
}
