package usgs

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/observability"
	"github.com/jonboulle/clockwork"
)

// placesTTL bounds how long a place list is reused. Population figures change slowly.
const placesTTL = 24 * time.Hour

// CachedPlaceFinder wraps a PlaceFinder with an in-memory LRU cache keyed by
// coordinates rounded to 0.01 degree. Entries expire after a day.
type CachedPlaceFinder struct {
	inner   domain.PlaceFinder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedPlaceFinder creates a cache decorator around a place finder.
func NewCachedPlaceFinder(inner domain.PlaceFinder, maxEntries int, metrics *observability.Metrics) *CachedPlaceFinder {
	return &CachedPlaceFinder{
		inner:   inner,
		cache:   newLRUCache(maxEntries, placesTTL, clockwork.NewRealClock()),
		metrics: metrics,
	}
}

func (c *CachedPlaceFinder) NearbyPlaces(ctx context.Context, coords domain.Coordinates) ([]domain.NearbyPlace, error) {
	key := fmt.Sprintf("%.2f,%.2f", coords.Lon, coords.Lat)
	if places, ok := c.cache.get(key); ok {
		c.metrics.PlacesCache.WithLabelValues("hit").Inc()
		return places, nil
	}
	c.metrics.PlacesCache.WithLabelValues("miss").Inc()

	places, err := c.inner.NearbyPlaces(ctx, coords)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so an empty answer can be retried.
	if len(places) > 0 {
		c.cache.put(key, places)
	}
	return places, nil
}

// lruCache is a TTL-bound LRU of place lists, most recent at the front.
type lruCache struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	clock clockwork.Clock
	ll    *list.List
	items map[string]*list.Element
}

type cached struct {
	key     string
	places  []domain.NearbyPlace
	expires time.Time
}

func newLRUCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		cap:   maxEntries,
		ttl:   ttl,
		clock: clock,
		ll:    list.New(),
		items: make(map[string]*list.Element, maxEntries),
	}
}

func (c *lruCache) get(key string) ([]domain.NearbyPlace, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	en := el.Value.(*cached)
	if !c.clock.Now().Before(en.expires) {
		c.ll.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return en.places, true
}

func (c *lruCache) put(key string, places []domain.NearbyPlace) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.clock.Now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		en := el.Value.(*cached)
		en.places, en.expires = places, expires
		c.ll.MoveToFront(el)
		return
	}

	c.items[key] = c.ll.PushFront(&cached{key: key, places: places, expires: expires})
	for c.ll.Len() > c.cap {
		oldest := c.ll.Back()
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cached).key)
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
