package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	text      string
	fetchedAt time.Time
}

// Cache memoizes successful fetches of a Fetcher. Concurrent misses for the
// same path share a single underlying fetch; failures are not remembered.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	// generation is bumped by Invalidate and Purge. A fetch that started
	// before the bump does not store its result.
	generation uint64
	group      singleflight.Group
}

// NewCache wraps fetcher. A zero ttl keeps entries until invalidated.
func NewCache(fetcher Fetcher, ttl time.Duration) *Cache {
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]entry{},
	}
}

// Text returns the cached text for path or fetches it. The shared fetch is
// detached from the cancellation of the caller that started it; every caller
// stops waiting when its own ctx is done.
func (c *Cache) Text(ctx context.Context, path string) (string, error) {
	if text, ok := c.lookup(path); ok {
		return text, nil
	}
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(path, func() (any, error) {
		if text, ok := c.lookup(path); ok {
			return text, nil
		}
		c.mu.RLock()
		generation := c.generation
		c.mu.RUnlock()

		text, err := c.fetcher.Text(fetchCtx, path)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		if c.generation == generation {
			c.entries[path] = entry{text: text, fetchedAt: c.now()}
		}
		c.mu.Unlock()
		return text, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Cache) lookup(path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	if !ok {
		return "", false
	}
	if c.ttl > 0 && c.now().Sub(e.fetchedAt) >= c.ttl {
		return "", false
	}
	return e.text, true
}

// Invalidate drops the entry for path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.generation++
	c.mu.Unlock()
}

// Purge drops all entries.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = map[string]entry{}
	c.generation++
	c.mu.Unlock()
}
