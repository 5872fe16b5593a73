package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"github.com/couchcryptid/fertigation-mix/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	tableReference    = "reference"
	tableDissociation = "dissociation"
)

// Cached wraps a Catalog with a TTL cache for the reference tables and an LRU
// for dissociation rows. It also records backend latency and outcomes.
type Cached struct {
	inner   domain.Catalog
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics

	mu        sync.Mutex
	tables    domain.ReferenceTables
	expiresAt time.Time
	loaded    bool

	rows *lruCache[int, domain.PhosphateDissociationRow]
}

// NewCached creates a cache decorator around a catalog.
func NewCached(inner domain.Catalog, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Cached {
	return &Cached{
		inner:   inner,
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
		rows:    newLRUCache[int, domain.PhosphateDissociationRow](maxEntries),
	}
}

func (c *Cached) ReferenceTables(ctx context.Context) (domain.ReferenceTables, error) {
	c.mu.Lock()
	if c.loaded && c.clock.Now().Before(c.expiresAt) {
		t := c.tables
		c.mu.Unlock()
		c.metrics.CatalogCache.WithLabelValues(tableReference, "hit").Inc()
		return t, nil
	}
	c.mu.Unlock()
	c.metrics.CatalogCache.WithLabelValues(tableReference, "miss").Inc()

	start := c.clock.Now()
	t, err := c.inner.ReferenceTables(ctx)
	c.observe(tableReference, start, err)
	if err != nil {
		return t, err
	}

	c.mu.Lock()
	c.tables = t
	c.expiresAt = c.clock.Now().Add(c.ttl)
	c.loaded = true
	c.mu.Unlock()
	return t, nil
}

func (c *Cached) PhosphateDissociation(ctx context.Context, ph float64) (domain.PhosphateDissociationRow, error) {
	key := domain.PHKey(ph)
	now := c.clock.Now()
	if row, ok := c.rows.get(key, now); ok {
		c.metrics.CatalogCache.WithLabelValues(tableDissociation, "hit").Inc()
		return row, nil
	}
	c.metrics.CatalogCache.WithLabelValues(tableDissociation, "miss").Inc()

	row, err := c.inner.PhosphateDissociation(ctx, ph)
	c.observe(tableDissociation, now, err)
	if err != nil {
		// Misses are not cached so newly imported rows become visible.
		return row, err
	}
	c.rows.put(key, row, c.clock.Now().Add(c.ttl))
	return row, nil
}

// Invalidate drops every cached entry.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
	c.rows.clear()
}

func (c *Cached) observe(table string, start time.Time, err error) {
	c.metrics.CatalogDuration.WithLabelValues(table).Observe(c.clock.Since(start).Seconds())
	outcome := "success"
	switch {
	case errors.Is(err, domain.ErrMissingReferenceData):
		outcome = "missing"
	case err != nil:
		outcome = "error"
	}
	c.metrics.CatalogRequests.WithLabelValues(table, outcome).Inc()
}

// lruCache is a thread-safe LRU cache whose entries also expire.
type lruCache[K comparable, V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[K]*entry[K, V]
	head       *entry[K, V] // most recently used
	tail       *entry[K, V] // least recently used
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
	prev      *entry[K, V]
	next      *entry[K, V]
}

func newLRUCache[K comparable, V any](maxEntries int) *lruCache[K, V] {
	return &lruCache[K, V]{
		maxEntries: maxEntries,
		entries:    make(map[K]*entry[K, V]),
	}
}

func (c *lruCache[K, V]) get(key K, now time.Time) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !now.Before(e.expiresAt) {
		delete(c.entries, key)
		c.remove(e)
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[K, V]) put(key K, value V, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry[K, V]{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[K, V]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*entry[K, V])
	c.head, c.tail = nil, nil
}

func (c *lruCache[K, V]) moveToFront(e *entry[K, V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[K, V]) addToFront(e *entry[K, V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[K, V]) remove(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[K, V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
