package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mtlprog/kursy/internal/domain"
)

type cacheEntry struct {
	series    domain.HistoricalSeries
	expiresAt time.Time
}

// CachedService keeps non-empty series for a fixed TTL. Empty series are never
// cached so a provider outage does not pin "no data".
type CachedService struct {
	next Source
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCachedService wraps next with a TTL cache. A non-positive ttl disables caching.
func NewCachedService(next Source, ttl time.Duration) *CachedService {
	return &CachedService{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// cacheKey formats: "{code}:{days}" e.g. "EUR:30"
func cacheKey(code string, days int) string {
	return fmt.Sprintf("%s:%d", code, days)
}

// Series returns the cached series or fetches it from the wrapped source.
func (c *CachedService) Series(ctx context.Context, code string, days int) (domain.HistoricalSeries, error) {
	key := cacheKey(code, days)
	if s, ok := c.get(key); ok {
		return s, nil
	}

	s, err := c.next.Series(ctx, code, days)
	if err != nil {
		return s, err
	}
	if !s.Empty() && c.ttl > 0 {
		c.set(key, s)
	}
	return s, nil
}

func (c *CachedService) get(key string) (domain.HistoricalSeries, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expiresAt) {
		return domain.HistoricalSeries{}, false
	}
	return entry.series, true
}

func (c *CachedService) set(key string, s domain.HistoricalSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		series:    s,
		expiresAt: c.now().Add(c.ttl),
	}
}
