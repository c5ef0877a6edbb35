package marketcap

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/carbon-dashboard/internal/resilience"
)

// lookupResult is what one successful pass produced, per company id.
type lookupResult struct {
	marketCaps map[string]float64
	symbols    map[string]string
	diag       Diagnostics
}

type cacheEntry struct {
	key       string
	expiresAt time.Time
	result    lookupResult
}

// Cache holds the latest successful lookup and the failure cooldown. One hard
// failure drops the cached result and opens the breaker for the cooldown
// window; after it one pass is admitted again.
type Cache struct {
	ttl     time.Duration
	now     func() time.Time
	breaker *resilience.CircuitBreaker

	mu    sync.Mutex
	entry *cacheEntry
}

// NewCache creates a Cache. A nil now uses time.Now. A zero cooldown never
// skips passes after a failure.
func NewCache(ttl, cooldown time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl: ttl,
		now: now,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 1,
			ResetTimeout:     cooldown,
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Debug("marketcap: cooldown state changed",
					zap.Stringer("from", from), zap.Stringer("to", to))
			},
		}, now),
	}
}

// CoolingDown reports whether passes are skipped, and the failure reason that
// started the cooldown.
func (c *Cache) CoolingDown() (string, bool) {
	if err := c.breaker.Allow(); err != nil {
		_, reason := c.breaker.LastFailure()
		if reason == "" {
			reason = "unknown"
		}
		return reason, true
	}
	return "", false
}

func (c *Cache) lookup(key string) (lookupResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil || c.entry.key != key || !c.now().Before(c.entry.expiresAt) {
		return lookupResult{}, false
	}
	return c.entry.result, true
}

func (c *Cache) store(key string, result lookupResult) {
	c.mu.Lock()
	c.entry = &cacheEntry{key: key, expiresAt: c.now().Add(c.ttl), result: result}
	c.mu.Unlock()
	c.breaker.RecordSuccess()
}

func (c *Cache) fail(reason string) {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
	c.breaker.RecordFailure(reason)
}
