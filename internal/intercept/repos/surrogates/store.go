package surrogates

import (
	"net/url"
	"strings"
	"sync"

	logpkg "github.com/haukened/rr-intercept/internal/intercept/common/log"
	"github.com/haukened/rr-intercept/internal/intercept/common/utils"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
	"github.com/haukened/rr-intercept/internal/intercept/services/interceptor"
)

// Store serves surrogates by request URL.
type Store struct {
	mu     sync.RWMutex
	byName map[string]domain.Surrogate
	logger logpkg.Logger
}

// NewStore returns an empty store.
func NewStore(logger logpkg.Logger) *Store {
	return &Store{byName: map[string]domain.Surrogate{}, logger: logpkg.OrNoop(logger)}
}

// Load replaces the stored surrogates. Later entries with the same name win.
func (s *Store) Load(list []domain.Surrogate) {
	m := make(map[string]domain.Surrogate, len(list))
	for _, sg := range list {
		m[sg.Name] = sg
	}
	s.mu.Lock()
	s.byName = m
	s.mu.Unlock()
	s.logger.Info(map[string]any{"count": len(m)}, "surrogates_loaded")
}

// Len returns the number of stored surrogates.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName)
}

// Get matches host+path of u against stored names, dropping leading host
// labels one at a time so "www.google-analytics.com/ga.js" finds
// "google-analytics.com/ga.js". Query and fragment are ignored.
func (s *Store) Get(u *url.URL) domain.SurrogateLookup {
	host := utils.HostOf(u)
	if host == "" {
		return domain.NoSurrogate()
	}
	path := strings.TrimPrefix(u.EscapedPath(), "/")

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range utils.Anchors(host) {
		if !strings.Contains(a, ".") {
			break
		}
		if sg, ok := s.byName[a+"/"+path]; ok {
			return sg.Lookup()
		}
	}
	return domain.NoSurrogate()
}

var _ interceptor.SurrogateStore = (*Store)(nil)
