package trackers

import (
	"sync"

	"github.com/haukened/rr-intercept/internal/intercept/common/utils"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

// repository implements Repository by composing a Store, a Bloom filter (via
// factory), and a DecisionCache. Reads go cache → bloom → store; writes swap a
// complete snapshot.
type repository struct {
	mu      sync.RWMutex
	store   Store
	cache   DecisionCache
	bloom   BloomFilter
	factory BloomFactory
	fpRate  float64
	gen     uint64 // bumped by UpdateAll; guarded by mu
}

// NewRepository constructs a Repository.
// fpRate is the target false-positive rate for the Bloom filter when rebuilding.
func NewRepository(store Store, cache DecisionCache, factory BloomFactory, fpRate float64) Repository {
	return &repository{store: store, cache: cache, factory: factory, fpRate: fpRate}
}

// Decide returns a RuleDecision for the provided host.
// Policy: on internal errors, prefer no match (not blocked).
func (r *repository) Decide(name string) domain.RuleDecision {
	cn := utils.CanonicalHostName(name)
	if cn == "" {
		return domain.NoMatch()
	}
	// 1) checkCache
	if d, ok := r.checkCache(cn); ok {
		return d
	}
	// 2) checkBloom: early-allow if definitively negative
	bf, gen := r.snapshot()
	if !bloomMayMatch(bf, cn) {
		return domain.NoMatch()
	}
	// 3) checkStore
	dec, err := r.checkStore(cn)
	if err != nil {
		return dec
	}
	// 4) updateCache, unless a rebuild happened since the read began
	r.updateCache(cn, dec, gen)
	return dec
}

// UpdateAll performs an atomic snapshot update across store, bloom, and cache.
func (r *repository) UpdateAll(rules []domain.HostRule, version uint64, updatedUnix int64) error {
	// 1) Rebuild the persistent store first.
	if err := r.store.RebuildAll(rules, version, updatedUnix); err != nil {
		return err
	}

	// 2) Build a fresh Bloom filter sized for the dataset.
	var n uint64
	for _, ru := range rules {
		if ru.Kind == domain.HostRuleExact || ru.Kind == domain.HostRuleSuffix {
			n++
		}
	}
	bf := r.factory.New(n, r.fpRate)
	for _, ru := range rules {
		switch ru.Kind {
		case domain.HostRuleExact:
			bf.Add([]byte(ru.Name))
		case domain.HostRuleSuffix:
			bf.Add([]byte(utils.ReverseString(ru.Name)))
		}
	}

	// 3) Swap bloom and purge decision cache under lock.
	r.mu.Lock()
	r.bloom = bf
	r.gen++
	r.cache.Purge()
	r.mu.Unlock()
	return nil
}

// RepoStats returns cache counters and store metadata.
func (r *repository) RepoStats() RepoStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RepoStats{
		Cache:      r.cache.Stats(),
		Store:      r.store.Stats(),
		BloomReady: r.bloom != nil,
	}
}

// snapshot returns the current Bloom filter and rebuild generation.
func (r *repository) snapshot() (BloomFilter, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bloom, r.gen
}

// bloomMayMatch returns true if we should consult the store (maybe-positive),
// or false if we can early-allow (definitely negative). If no bloom is loaded,
// returns true to allow authoritative checking.
func bloomMayMatch(bf BloomFilter, cn string) bool {
	if bf == nil {
		return true
	}
	if bf.MightContain([]byte(cn)) {
		return true
	}
	// test reversed anchors for suffix candidates, most-specific → apex
	for _, a := range utils.Anchors(cn) {
		if bf.MightContain([]byte(utils.ReverseString(a))) {
			return true
		}
	}
	return false
}

// checkCache returns a cached decision when present.
func (r *repository) checkCache(cn string) (domain.RuleDecision, bool) {
	r.mu.RLock()
	d, ok := r.cache.Get(cn)
	r.mu.RUnlock()
	return d, ok
}

// checkStore consults the authoritative store and materializes a decision.
// On error the decision is NoMatch and the error is returned so the caller
// does not cache it.
func (r *repository) checkStore(cn string) (domain.RuleDecision, error) {
	rule, ok, err := r.store.GetFirstMatch(cn)
	if err != nil || !ok {
		return domain.NoMatch(), err
	}
	return domain.DecisionFor(rule), nil
}

// updateCache writes the final decision if no rebuild happened after gen was read.
func (r *repository) updateCache(cn string, dec domain.RuleDecision, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return
	}
	r.cache.Put(cn, dec)
}
