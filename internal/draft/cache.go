package draft

import (
	"sync"

	"github.com/google/uuid"
)

// EntryState distinguishes "no extras" from "extras not yet fetched".
type EntryState int

const (
	StateNotRequested EntryState = iota
	StateLoading
	StateLoaded
)

type cacheEntry struct {
	state  EntryState
	detail ProductDetail
}

// ProductCache is a read-through cache of full product details keyed by
// product id. Entries are shared across line items referencing the same
// product; duplicate concurrent fetches for one id are tolerated since the
// payload is idempotent per id.
type ProductCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]cacheEntry
}

func NewProductCache() *ProductCache {
	return &ProductCache{entries: make(map[uuid.UUID]cacheEntry)}
}

// State returns the entry state for a product id.
func (c *ProductCache) State(id uuid.UUID) EntryState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[id].state
}

// Get returns the detail only when fully loaded.
func (c *ProductCache) Get(id uuid.UUID) (ProductDetail, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.entries[id]
	if e.state != StateLoaded {
		return ProductDetail{}, false
	}
	return e.detail, true
}

// Put stores a loaded detail, overwriting any previous entry.
func (c *ProductCache) Put(detail ProductDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[detail.ID] = cacheEntry{state: StateLoaded, detail: detail}
}

// Fetch marks the entry loading and resolves it on a separate goroutine.
// A failed fetch reverts a loading entry to not-requested so the next attach
// retries; an already loaded entry is left untouched. The returned channel
// closes when the fetch settles either way.
func (c *ProductCache) Fetch(id uuid.UUID, fetch FetchDetailFunc) <-chan struct{} {
	c.mu.Lock()
	if c.entries[id].state == StateNotRequested {
		c.entries[id] = cacheEntry{state: StateLoading}
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		detail, err := fetch(id)
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			if c.entries[id].state == StateLoading {
				delete(c.entries, id)
			}
			return
		}
		c.entries[id] = cacheEntry{state: StateLoaded, detail: detail}
	}()
	return done
}
