// Package cache remembers which bundle identifier and genre each
// application name resolved to, so an archive is downloaded at most once
// per name across runs.
package cache

import (
	"context"
	"sync"

	"github.com/aluedeke/go-appfeed/pkg/catalog"
)

// Entry is a resolved identity
type Entry struct {
	BundleID string
	Genre    catalog.Genre
}

// Record is one persisted row
type Record struct {
	Name     string
	BundleID string
	Genre    catalog.Genre
}

// Storage loads and saves the full record set
type Storage interface {
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, records []Record) error
}

// Cache maps application names to resolved identities. It is safe for
// concurrent use; an Insert is visible to every later Lookup.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// New returns an empty cache
func New() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Load builds a cache from storage
func Load(ctx context.Context, s Storage) (*Cache, error) {
	records, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	c := New()
	for _, r := range records {
		c.Insert(r.Name, r.BundleID, r.Genre)
	}
	return c, nil
}

// Lookup returns the entry for name
func (c *Cache) Lookup(name string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// Insert records an identity. The first insert for a name wins; later
// ones are ignored so a name is never re-resolved.
func (c *Cache) Insert(name, bundleID string, genre catalog.Genre) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[name]; ok {
		return
	}
	c.entries[name] = Entry{BundleID: bundleID, Genre: genre}
	c.order = append(c.order, name)
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Records returns all entries in insertion order
func (c *Cache) Records() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Record, 0, len(c.order))
	for _, name := range c.order {
		e := c.entries[name]
		out = append(out, Record{Name: name, BundleID: e.BundleID, Genre: e.Genre})
	}
	return out
}

// Save writes every entry to storage
func (c *Cache) Save(ctx context.Context, s Storage) error {
	return s.Save(ctx, c.Records())
}
