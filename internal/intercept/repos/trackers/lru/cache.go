package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
	"github.com/haukened/rr-intercept/internal/intercept/repos/trackers"
)

// decisionCache is an LRU-backed implementation of trackers.DecisionCache.
// It tracks basic metrics: hits, misses, and evictions.
type decisionCache struct {
	lru       *lru.Cache[string, domain.RuleDecision]
	capacity  int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// disabledCache is a no-op DecisionCache used when size <= 0.
type disabledCache struct{}

// New creates a new DecisionCache with the given capacity. If size <= 0, a
// disabled no-op cache is returned that always misses and tracks no metrics.
func New(size int) (trackers.DecisionCache, error) {
	if size <= 0 {
		return &disabledCache{}, nil
	}

	dc := &decisionCache{capacity: size}
	// NewWithEvict observes evictions, including Purge-induced ones.
	cache, err := lru.NewWithEvict(size, func(_ string, _ domain.RuleDecision) {
		dc.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	dc.lru = cache
	return dc, nil
}

// Get looks up a decision by host. When found, increments hits; otherwise increments misses.
func (c *decisionCache) Get(name string) (domain.RuleDecision, bool) {
	if val, ok := c.lru.Get(name); ok {
		c.hits.Add(1)
		return val, true
	}
	c.misses.Add(1)
	return domain.RuleDecision{}, false
}

// Put stores a decision by host.
func (c *decisionCache) Put(name string, d domain.RuleDecision) {
	c.lru.Add(name, d)
}

func (c *decisionCache) Len() int { return c.lru.Len() }

// Purge clears all entries. Evictions are counted via the eviction callback.
func (c *decisionCache) Purge() { c.lru.Purge() }

func (c *decisionCache) Stats() trackers.CacheStats {
	return trackers.CacheStats{
		Capacity:  c.capacity,
		Size:      c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// disabledCache implementation

func (d *disabledCache) Get(string) (domain.RuleDecision, bool) { return domain.RuleDecision{}, false }

func (d *disabledCache) Put(string, domain.RuleDecision) {}

func (d *disabledCache) Len() int { return 0 }

func (d *disabledCache) Purge() {}

func (d *disabledCache) Stats() trackers.CacheStats { return trackers.CacheStats{} }

var _ trackers.DecisionCache = (*decisionCache)(nil)
var _ trackers.DecisionCache = (*disabledCache)(nil)
