package trackers

import (
	"github.com/haukened/rr-intercept/internal/intercept/domain"
	"github.com/haukened/rr-intercept/internal/intercept/repos/bloom"
)

// DecisionCache caches rule decisions by canonical host with basic metrics.
type DecisionCache interface {
	Get(name string) (domain.RuleDecision, bool)
	Put(name string, d domain.RuleDecision)
	Len() int
	Purge()
	Stats() CacheStats
}

// Store is the authoritative tracker rule index.
//   - GetFirstMatch returns the most specific rule covering name (exact before suffix at the same level)
//   - RebuildAll atomically replaces every rule and the snapshot metadata
type Store interface {
	GetFirstMatch(name string) (domain.HostRule, bool, error)
	RebuildAll(rules []domain.HostRule, version uint64, updatedUnix int64) error
	Stats() StoreStats
	Close() error
}

// Repository is the composition layer that wires bloom → cache → store.
// Decide returns a value-type RuleDecision for a canonical host.
// UpdateAll rebuilds the store, refreshes the Bloom filter, and clears the cache.
type Repository interface {
	Decide(name string) domain.RuleDecision
	UpdateAll(rules []domain.HostRule, version uint64, updatedUnix int64) error
	RepoStats() RepoStats
}

// BloomFilter and BloomFactory are the Bloom surfaces the repository consumes.
type (
	BloomFilter  = bloom.Filter
	BloomFactory = bloom.Factory
)
