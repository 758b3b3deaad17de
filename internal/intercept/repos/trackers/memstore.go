package trackers

import (
	"sync"

	"github.com/haukened/rr-intercept/internal/intercept/common/utils"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

// memStore is a map-backed Store used when no database path is configured.
// RebuildAll builds fresh maps and swaps them under the write lock.
type memStore struct {
	mu      sync.RWMutex
	exact   map[string]domain.HostRule
	suffix  map[string]domain.HostRule
	version uint64
	updated int64
}

// NewMemStore returns an empty in-memory Store.
func NewMemStore() Store {
	return &memStore{
		exact:  map[string]domain.HostRule{},
		suffix: map[string]domain.HostRule{},
	}
}

func (s *memStore) GetFirstMatch(name string) (domain.HostRule, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, a := range utils.Anchors(name) {
		if i == 0 {
			if r, ok := s.exact[a]; ok {
				return r, true, nil
			}
		}
		if r, ok := s.suffix[a]; ok {
			return r, true, nil
		}
	}
	return domain.HostRule{}, false, nil
}

func (s *memStore) RebuildAll(rules []domain.HostRule, version uint64, updatedUnix int64) error {
	exact := make(map[string]domain.HostRule)
	suffix := make(map[string]domain.HostRule)
	for _, r := range rules {
		m := exact
		if r.IsSuffix() {
			m = suffix
		}
		if prev, ok := m[r.Name]; ok && !Supersedes(prev, r) {
			continue
		}
		m[r.Name] = r
	}
	s.mu.Lock()
	s.exact, s.suffix = exact, suffix
	s.version, s.updated = version, updatedUnix
	s.mu.Unlock()
	return nil
}

func (s *memStore) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StoreStats{
		Version:     s.version,
		UpdatedUnix: s.updated,
		ExactKeys:   uint64(len(s.exact)),
		SuffixKeys:  uint64(len(s.suffix)),
	}
}

func (s *memStore) Close() error { return nil }

// Supersedes reports whether next replaces existing for the same name and kind.
// An allow exception wins over a block entry; otherwise the first rule stays.
func Supersedes(existing, next domain.HostRule) bool {
	return !existing.IsAllow() && next.IsAllow()
}
