package responder

import (
	"context"
	"sync"
)

// SettingLookup loads a named application setting from backing storage.
type SettingLookup func(ctx context.Context, name string) (string, error)

// SettingsCache memoises application settings (webhook URLs and similar
// lookup-by-name values) for the lifetime of the process. It is injected
// where needed instead of living as a package singleton, so tests can Reset
// it deterministically.
type SettingsCache struct {
	mu     sync.Mutex
	values map[string]string
	lookup SettingLookup
}

func NewSettingsCache(lookup SettingLookup) *SettingsCache {
	return &SettingsCache{
		values: make(map[string]string),
		lookup: lookup,
	}
}

func (c *SettingsCache) Get(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	if val, ok := c.values[name]; ok {
		c.mu.Unlock()
		return val, nil
	}
	c.mu.Unlock()

	val, err := c.lookup(ctx, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.values[name] = val
	c.mu.Unlock()
	return val, nil
}

// Reset drops every cached value. Values are otherwise retained until the
// process restarts.
func (c *SettingsCache) Reset() {
	c.mu.Lock()
	c.values = make(map[string]string)
	c.mu.Unlock()
}
