// Package result_cache memoizes clean object-sanitization results behind an
// LRU with TTL expiry. Keys are shallow fingerprints (shape plus top-level
// content, never a deep hash), so the cache stays cheap at the cost of
// treating structurally identical graphs as equal. Only results without
// violations or warnings are stored; anything else depends on per-call
// budgets and must be recomputed.
package result_cache

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/TrustWeave/LogArmor/pkg/common"
	"github.com/TrustWeave/LogArmor/pkg/metrics"
	"github.com/TrustWeave/LogArmor/pkg/types"
)

// Options bounds the cache. Zero values fall back to the documented
// defaults at construction.
type Options struct {
	// MaxEntries caps the entry count; the least recently used entry is
	// evicted beyond it.
	MaxEntries int `mapstructure:"max_entries"`

	// TTL is the entry lifetime, checked lazily on Get and by the sweeper.
	TTL time.Duration `mapstructure:"ttl"`

	// SweepInterval is how often the background sweeper drops expired
	// entries that nobody looked up.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

func (o *Options) normalize() {
	if o.MaxEntries < 1 {
		o.MaxEntries = common.DefaultCacheSize
	}
	if o.TTL <= 0 {
		o.TTL = common.DefaultCacheTTL
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = common.DefaultSweepInterval
	}
}

// Stats is a point-in-time counter snapshot.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}

type entry struct {
	result     *types.SanitizationResult
	insertedAt time.Time
}

// Cache is a bounded TTL cache for sanitization results. Safe for
// concurrent use. Stop releases the sweeper goroutine.
type Cache struct {
	logger *logrus.Logger
	opts   Options
	lru    *lru.Cache[string, *entry]
	nowFn  func() time.Time

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCache builds the cache and starts its sweeper.
func NewCache(logger *logrus.Logger, opts Options) (*Cache, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	opts.normalize()

	c := &Cache{
		logger: logger,
		opts:   opts,
		nowFn:  time.Now,
		stop:   make(chan struct{}),
	}
	backing, err := lru.NewWithEvict[string, *entry](opts.MaxEntries, func(string, *entry) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = backing

	go c.sweepLoop()
	return c, nil
}

// Get returns a deep copy of the cached result, so callers can never reach
// the stored graph. Expired entries count as misses and are dropped.
func (c *Cache) Get(key string) (*types.SanitizationResult, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		metrics.RecordCacheEvent("miss")
		return nil, false
	}
	if c.nowFn().Sub(e.insertedAt) > c.opts.TTL {
		c.lru.Remove(key)
		c.misses.Add(1)
		metrics.RecordCacheEvent("expired")
		return nil, false
	}
	c.hits.Add(1)
	metrics.RecordCacheEvent("hit")
	return copyResult(e.result), true
}

// Put stores a clean result and reports whether it was cacheable. Results
// carrying violations or warnings are refused.
func (c *Cache) Put(key string, result *types.SanitizationResult) bool {
	if key == "" || result == nil || len(result.Violations) > 0 || len(result.Warnings) > 0 {
		return false
	}
	c.lru.Add(key, &entry{result: copyResult(result), insertedAt: c.nowFn()})
	metrics.RecordCacheEvent("store")
	return true
}

// Len returns the live entry count, expired entries included until swept.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Stats snapshots the hit/miss/eviction counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.lru.Len(),
	}
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Stop terminates the sweeper. The cache itself stays usable; only lazy
// expiry applies afterwards. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := c.nowFn()
	removed := 0
	for _, key := range c.lru.Keys() {
		if e, ok := c.lru.Peek(key); ok && now.Sub(e.insertedAt) > c.opts.TTL {
			c.lru.Remove(key)
			metrics.RecordCacheEvent("expired")
			removed++
		}
	}
	if removed > 0 {
		c.logger.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": c.lru.Len(),
		}).Debug("Cache sweep completed")
	}
}

// copyResult detaches a stored result from the returned one. Plain maps and
// slices are copied recursively; scalar leaves are immutable and shared.
func copyResult(r *types.SanitizationResult) *types.SanitizationResult {
	out := *r
	out.Sanitized = copyValue(r.Sanitized)
	out.Violations = append([]types.Violation(nil), r.Violations...)
	out.Warnings = append([]string(nil), r.Warnings...)
	return &out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = copyValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
