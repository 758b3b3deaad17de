package upgrade

import (
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/haukened/rr-intercept/internal/intercept/common/log"
	"github.com/haukened/rr-intercept/internal/intercept/common/utils"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
	"github.com/haukened/rr-intercept/internal/intercept/repos/bloom"
	"github.com/haukened/rr-intercept/internal/intercept/services/interceptor"
)

// Stats describes the loaded upgrade snapshot.
type Stats struct {
	Hosts      int // exact hosts added to the Bloom filter
	Suffixes   int // suffix entries
	Exclusions int // exact and suffix exclusions
}

// snapshot is an immutable view of the upgrade list.
type snapshot struct {
	hosts          bloom.Filter
	suffixes       map[string]struct{}
	excluded       map[string]struct{}
	excludedSuffix map[string]struct{}
	stats          Stats
}

// Oracle decides whether a plaintext main-frame URL can be upgraded to HTTPS.
// Exact hosts live in a Bloom filter; allow (@@) rules form the exclusion list
// that absorbs known false positives.
type Oracle struct {
	mu      sync.RWMutex
	snap    *snapshot
	factory bloom.Factory
	fpRate  float64
	logger  log.Logger
}

// NewOracle returns an empty Oracle; nothing is upgraded until Load is called.
func NewOracle(factory bloom.Factory, fpRate float64, logger log.Logger) *Oracle {
	return &Oracle{factory: factory, fpRate: fpRate, logger: log.OrNoop(logger)}
}

// Load replaces the upgrade list with rules.
// Block rules are upgradable hosts; allow rules are exclusions.
func (o *Oracle) Load(rules []domain.HostRule) {
	s := &snapshot{
		suffixes:       map[string]struct{}{},
		excluded:       map[string]struct{}{},
		excludedSuffix: map[string]struct{}{},
	}
	var exact []string
	for _, r := range rules {
		switch {
		case r.IsAllow() && r.IsSuffix():
			s.excludedSuffix[r.Name] = struct{}{}
		case r.IsAllow():
			s.excluded[r.Name] = struct{}{}
		case r.IsSuffix():
			s.suffixes[r.Name] = struct{}{}
		default:
			exact = append(exact, r.Name)
		}
	}
	s.hosts = o.factory.New(uint64(len(exact)), o.fpRate)
	for _, h := range exact {
		s.hosts.Add([]byte(h))
	}
	s.stats = Stats{
		Hosts:      len(exact),
		Suffixes:   len(s.suffixes),
		Exclusions: len(s.excluded) + len(s.excludedSuffix),
	}

	o.mu.Lock()
	o.snap = s
	o.mu.Unlock()
	o.logger.Info(map[string]any{
		"hosts":      s.stats.Hosts,
		"suffixes":   s.stats.Suffixes,
		"exclusions": s.stats.Exclusions,
	}, "upgrade_list_loaded")
}

// Stats returns counts for the current snapshot.
func (o *Oracle) Stats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.snap == nil {
		return Stats{}
	}
	return o.snap.stats
}

// ShouldUpgrade reports whether u is a plaintext URL whose host is on the upgrade list.
func (o *Oracle) ShouldUpgrade(u *url.URL) bool {
	if u == nil || !strings.EqualFold(u.Scheme, "http") {
		return false
	}
	host := utils.HostOf(u)
	if host == "" || net.ParseIP(host) != nil {
		return false
	}
	o.mu.RLock()
	s := o.snap
	o.mu.RUnlock()
	if s == nil {
		return false
	}

	anchors := utils.Anchors(host)
	if _, ok := s.excluded[host]; ok {
		return false
	}
	for _, a := range anchors {
		if _, ok := s.excludedSuffix[a]; ok {
			return false
		}
	}
	if s.hosts.MightContain([]byte(host)) {
		return true
	}
	for _, a := range anchors {
		if _, ok := s.suffixes[a]; ok {
			return true
		}
	}
	return false
}

// Upgrade returns a copy of u with the https scheme. An explicit default
// http port is dropped; any other port is kept.
func (o *Oracle) Upgrade(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	up := *u
	up.Scheme = "https"
	if u.Port() == "80" {
		up.Host = strings.TrimSuffix(u.Host, ":80")
	}
	return &up
}

var _ interceptor.UpgradeOracle = (*Oracle)(nil)
