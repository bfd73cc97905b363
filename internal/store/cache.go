package store

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"owncheck/internal/model"
)

// Caching wraps a DeclarationStore with a per-instance cache and
// single-flight deduplication: a change touching many files in one subtree
// fetches each directory's declaration once, even under concurrent
// per-file resolution.
//
// Negative results (ErrNotFound) are cached too; parse and structural
// errors are not, so a transient backend failure does not stick for the
// lifetime of the cache.
type Caching struct {
	next DeclarationStore

	group singleflight.Group

	mu    sync.RWMutex
	hits  map[string]model.Declaration
	misses map[string]struct{}
}

func NewCaching(next DeclarationStore) *Caching {
	return &Caching{
		next:   next,
		hits:   make(map[string]model.Declaration),
		misses: make(map[string]struct{}),
	}
}

func (c *Caching) Get(ctx context.Context, rev model.Revision, dir string) (model.Declaration, error) {
	k := key(rev, dir)

	c.mu.RLock()
	d, ok := c.hits[k]
	if !ok {
		_, miss := c.misses[k]
		c.mu.RUnlock()
		if miss {
			return model.Declaration{}, ErrNotFound
		}
	} else {
		c.mu.RUnlock()
		return d, nil
	}

	v, err, _ := c.group.Do(k, func() (any, error) {
		d, err := c.next.Get(ctx, rev, dir)
		if err == nil {
			c.mu.Lock()
			c.hits[k] = d
			c.mu.Unlock()
			return d, nil
		}
		if err == ErrNotFound {
			c.mu.Lock()
			c.misses[k] = struct{}{}
			c.mu.Unlock()
		}
		return model.Declaration{}, err
	})
	if err != nil {
		return model.Declaration{}, err
	}
	return v.(model.Declaration), nil
}
