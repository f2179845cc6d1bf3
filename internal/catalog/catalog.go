package catalog

import (
	"sync/atomic"
	"time"

	"ArtalePriceBot/internal/model"
)

// Catalog is an immutable snapshot of item records. It is never mutated after
// construction; a refresh builds a new Catalog and swaps it into the Store.
type Catalog struct {
	items      []model.ItemRecord
	capturedAt time.Time
	source     string
	degraded   bool
}

// New copies items into a new Catalog captured at the given time.
func New(items []model.ItemRecord, capturedAt time.Time, source string, degraded bool) *Catalog {
	cp := make([]model.ItemRecord, len(items))
	copy(cp, items)
	return &Catalog{items: cp, capturedAt: capturedAt, source: source, degraded: degraded}
}

// Items returns a copy of the records in catalog order.
func (c *Catalog) Items() []model.ItemRecord {
	if c == nil {
		return nil
	}
	cp := make([]model.ItemRecord, len(c.items))
	copy(cp, c.items)
	return cp
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

func (c *Catalog) CapturedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.capturedAt
}

func (c *Catalog) Source() string {
	if c == nil {
		return ""
	}
	return c.source
}

func (c *Catalog) Degraded() bool { return c != nil && c.degraded }

// Store holds the current Catalog behind an atomic pointer.
type Store struct {
	current     atomic.Pointer[Catalog]
	ttl         time.Duration
	fallbackTTL time.Duration
	now         func() time.Time
}

// NewStore creates an empty store. fallbackTTL applies to degraded catalogs;
// zero means the same as ttl.
func NewStore(ttl, fallbackTTL time.Duration) *Store {
	if fallbackTTL <= 0 {
		fallbackTTL = ttl
	}
	return &Store{ttl: ttl, fallbackTTL: fallbackTTL, now: time.Now}
}

// Get returns the current catalog, or nil if none was ever set.
func (s *Store) Get() *Catalog { return s.current.Load() }

// Set replaces the current catalog wholesale.
func (s *Store) Set(c *Catalog) { s.current.Store(c) }

// IsStale reports whether the current catalog is missing, empty or older than
// its TTL.
func (s *Store) IsStale() bool {
	c := s.current.Load()
	if c.Len() == 0 {
		return true
	}
	ttl := s.ttl
	if c.degraded {
		ttl = s.fallbackTTL
	}
	return s.now().Sub(c.capturedAt) > ttl
}

// HasLive reports whether a non-degraded, non-empty catalog is held, fresh or not.
func (s *Store) HasLive() bool {
	c := s.current.Load()
	return c.Len() > 0 && !c.degraded
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Now returns the store's notion of the current time.
func (s *Store) Now() time.Time { return s.now() }
