package preview

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ScopeKey picks the cache scope of a question: its exercise, else its
// subject, else the question itself.
func ScopeKey(exerciseID, subjectID, questionID string) string {
	switch {
	case exerciseID != "":
		return "exercise:" + exerciseID
	case subjectID != "":
		return "subject:" + subjectID
	default:
		return "question:" + questionID
	}
}

// Cache memoizes previews within one scope. Moving to another scope clears
// it; within a scope an entry is written once and never replaced.
type Cache struct {
	mu      sync.Mutex
	scope   string
	entries map[string]Preview
	group   singleflight.Group
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]Preview)}
}

// SetScope switches the cache to scope, dropping all entries when it changes.
// It reports whether the scope changed.
func (c *Cache) SetScope(scope string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if scope == c.scope {
		return false
	}
	c.scope = scope
	c.entries = make(map[string]Preview)
	return true
}

// Scope returns the current scope.
func (c *Cache) Scope() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// Get returns the cached preview for key.
func (c *Cache) Get(key string) (Preview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[key]
	return p, ok
}

// Put stores p unless key is already populated or scope is no longer current.
func (c *Cache) Put(scope, key string, p Preview) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if scope != c.scope {
		return
	}
	if _, ok := c.entries[key]; ok {
		return
	}
	c.entries[key] = p
}

// Len returns the number of cached previews.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetOrResolve returns the cached preview for key in the current scope,
// calling resolve at most once for concurrent misses. Failed resolutions are
// not cached.
func (c *Cache) GetOrResolve(ctx context.Context, key string, resolve func(context.Context) (Preview, error)) (Preview, error) {
	c.mu.Lock()
	scope := c.scope
	if p, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(scope+"\x00"+key, func() (any, error) {
		if p, ok := c.Get(key); ok {
			return p, nil
		}
		p, err := resolve(ctx)
		if err != nil {
			return Preview{}, err
		}
		c.Put(scope, key, p)
		return p, nil
	})
	if err != nil {
		return Preview{}, err
	}
	return v.(Preview), nil
}
