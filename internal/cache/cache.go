// Package cache keeps the full result set of the current catalog query and derives pages from it.
package cache

import (
	"fmt"
	"slices"
	"sync"

	"github.com/abgdnv/producthub/internal/catalog"
)

// DefaultPageSize is the number of products shown per page.
const DefaultPageSize = 6

// State is the fetch state of the cache.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "empty"
	}
}

// MarshalText lets the state appear as a string in JSON views.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "empty":
		*s = StateEmpty
	case "loading":
		*s = StateLoading
	case "loaded":
		*s = StateLoaded
	case "failed":
		*s = StateFailed
	default:
		return fmt.Errorf("unknown cache state %q", text)
	}
	return nil
}

// Snapshot is a consistent view of the cache taken under a single lock.
type Snapshot struct {
	State      State
	Query      string
	Page       int
	TotalPages int
	Total      int
	PageItems  []catalog.Product
	Err        error
}

// CatalogCache holds the products of the last successful query.
// The result slice is never mutated in place, a new fetch swaps it wholesale.
// Fetches are fenced by a sequence number: only the most recently started fetch may complete.
type CatalogCache struct {
	mu       sync.RWMutex
	pageSize int
	items    []catalog.Product
	query    string
	page     int
	state    State
	seq      uint64
	err      error
}

// New creates an empty cache. A non-positive page size falls back to DefaultPageSize.
func New(pageSize int) *CatalogCache {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &CatalogCache{
		pageSize: pageSize,
		page:     1,
		state:    StateEmpty,
	}
}

// BeginFetch moves the cache to Loading and returns the token the fetch must complete with.
// Any fetch started earlier becomes stale.
func (c *CatalogCache) BeginFetch(query string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.state = StateLoading
	c.query = query
	return c.seq
}

// CompleteFetch replaces the result set and resets the cursor to page 1.
// It reports false and changes nothing when seq is stale.
func (c *CatalogCache) CompleteFetch(seq uint64, items []catalog.Product) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return false
	}
	c.items = slices.Clone(items)
	c.page = 1
	c.state = StateLoaded
	c.err = nil
	return true
}

// FailFetch clears the result set, resets the cursor and retains err.
// It reports false and changes nothing when seq is stale.
func (c *CatalogCache) FailFetch(seq uint64, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return false
	}
	c.items = nil
	c.page = 1
	c.state = StateFailed
	c.err = err
	return true
}

// SetPage moves the cursor to n. Values outside [1, TotalPages] are ignored.
func (c *CatalogCache) SetPage(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 || n > c.totalPages() {
		return false
	}
	c.page = n
	return true
}

// Page returns the current cursor.
func (c *CatalogCache) Page() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.page
}

// TotalPages returns max(1, ceil(len/pageSize)).
func (c *CatalogCache) TotalPages() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalPages()
}

// CurrentPageItems returns a copy of the products on the current page, empty when there are none.
func (c *CatalogCache) CurrentPageItems() []catalog.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pageItems()
}

// Items returns a copy of the whole result set in server order.
func (c *CatalogCache) Items() []catalog.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Len returns the size of the result set.
func (c *CatalogCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// State returns the fetch state.
func (c *CatalogCache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the error of the last failed fetch, nil otherwise.
func (c *CatalogCache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Query returns the query of the most recently started fetch.
func (c *CatalogCache) Query() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.query
}

// Find returns the cached product with the given id.
func (c *CatalogCache) Find(id string) (catalog.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := slices.IndexFunc(c.items, func(p catalog.Product) bool { return p.ID == id })
	if idx < 0 {
		return catalog.Product{}, false
	}
	return c.items[idx], true
}

// Snapshot returns the state, cursor and current page in one consistent read.
func (c *CatalogCache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		State:      c.state,
		Query:      c.query,
		Page:       c.page,
		TotalPages: c.totalPages(),
		Total:      len(c.items),
		PageItems:  c.pageItems(),
		Err:        c.err,
	}
}

// PageSize returns the configured page size.
func (c *CatalogCache) PageSize() int {
	return c.pageSize
}

func (c *CatalogCache) totalPages() int {
	return max(1, (len(c.items)+c.pageSize-1)/c.pageSize)
}

func (c *CatalogCache) pageItems() []catalog.Product {
	start := (c.page - 1) * c.pageSize
	if start >= len(c.items) {
		return []catalog.Product{}
	}
	end := min(start+c.pageSize, len(c.items))
	return slices.Clone(c.items[start:end])
}
