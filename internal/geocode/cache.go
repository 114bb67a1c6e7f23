package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/example/ewaste-pickup/internal/models"
)

// Store is the cache backend for geocode lookups. Values are opaque
// JSON strings; misses are (_, false).
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// MemoryStore is a TTL map cache for single-process deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	store map[string]memoryEntry
	ttl   time.Duration
}

type memoryEntry struct {
	v  string
	ts time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{store: make(map[string]memoryEntry), ttl: ttl}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	e, ok := m.store[key]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Since(e.ts) > m.ttl {
		m.mu.Lock()
		delete(m.store, key)
		m.mu.Unlock()
		return "", false
	}
	return e.v, true
}

func (m *MemoryStore) Set(_ context.Context, key, value string) {
	m.mu.Lock()
	m.store[key] = memoryEntry{v: value, ts: time.Now()}
	m.mu.Unlock()
}

// Cached layers a Store over another Resolver. Forward resolves and
// reverse descriptions are cached; interactive search is not, since
// prefixes rarely repeat within a TTL.
type Cached struct {
	Next  Resolver
	Store Store
}

func NewCached(next Resolver, store Store) *Cached {
	return &Cached{Next: next, Store: store}
}

func (c *Cached) Search(ctx context.Context, query string) ([]models.AddressCandidate, error) {
	return c.Next.Search(ctx, query)
}

type resolveEntry struct {
	Point       models.GeoPoint `json:"point"`
	DisplayName string          `json:"display_name"`
	OK          bool            `json:"ok"`
}

func (c *Cached) Resolve(ctx context.Context, query string) (models.GeoPoint, string, bool, error) {
	key := "geocode:fwd:" + query
	if raw, ok := c.Store.Get(ctx, key); ok {
		var e resolveEntry
		if err := json.Unmarshal([]byte(raw), &e); err == nil {
			return e.Point, e.DisplayName, e.OK, nil
		}
	}

	pt, name, ok, err := c.Next.Resolve(ctx, query)
	if err != nil {
		return pt, name, ok, err
	}
	// Misses are cached too; a query with no match stays a miss for
	// the TTL rather than hammering the provider.
	if raw, err := json.Marshal(resolveEntry{Point: pt, DisplayName: name, OK: ok}); err == nil {
		c.Store.Set(ctx, key, string(raw))
	}
	return pt, name, ok, nil
}

func (c *Cached) Describe(ctx context.Context, point models.GeoPoint) (string, bool) {
	key := fmt.Sprintf("geocode:rev:%.6f,%.6f", point.Lat, point.Lng)
	if raw, ok := c.Store.Get(ctx, key); ok {
		return raw, raw != ""
	}

	name, ok := c.Next.Describe(ctx, point)
	if ok {
		c.Store.Set(ctx, key, name)
	}
	return name, ok
}
