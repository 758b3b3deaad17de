package trusted

import (
	"fmt"
	"sync"

	"github.com/haukened/rr-intercept/internal/intercept/common/utils"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
	"github.com/haukened/rr-intercept/internal/intercept/repos/parsers"
	"github.com/haukened/rr-intercept/internal/intercept/services/interceptor"
)

// Registry is the runtime-mutable allowlist of trusted sites.
// Documents on a trusted site are never upgraded past, notified on, or blocked.
type Registry struct {
	mu     sync.RWMutex
	exact  map[string]struct{}
	suffix map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{exact: map[string]struct{}{}, suffix: map[string]struct{}{}}
}

// IsTrusted reports whether the host of documentURL is on the allowlist.
// Unparsable URLs are never trusted.
func (r *Registry) IsTrusted(documentURL string) bool {
	host, ok := utils.HostOfRaw(documentURL)
	if !ok {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.exact[host]; ok {
		return true
	}
	for _, a := range utils.Anchors(host) {
		if _, ok := r.suffix[a]; ok {
			return true
		}
	}
	return false
}

// Add trusts a site pattern: "example.com" for the host only, "*.example.com"
// for the domain and all its subdomains.
func (r *Registry) Add(pattern string) error {
	name, kind, ok := parsers.ParsePattern(pattern)
	if !ok {
		return fmt.Errorf("invalid trusted site pattern %q", pattern)
	}
	r.mu.Lock()
	r.set(kind)[name] = struct{}{}
	r.mu.Unlock()
	return nil
}

// Remove drops a previously added pattern. Unknown patterns are ignored.
func (r *Registry) Remove(pattern string) {
	name, kind, ok := parsers.ParsePattern(pattern)
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.set(kind), name)
	r.mu.Unlock()
}

// Replace swaps the allowlist for the block-action rules in rules.
// Allow (@@) entries carry no meaning in a trust list and are skipped.
func (r *Registry) Replace(rules []domain.HostRule) {
	exact := map[string]struct{}{}
	suffix := map[string]struct{}{}
	for _, ru := range rules {
		if ru.IsAllow() {
			continue
		}
		if ru.IsSuffix() {
			suffix[ru.Name] = struct{}{}
		} else {
			exact[ru.Name] = struct{}{}
		}
	}
	r.mu.Lock()
	r.exact, r.suffix = exact, suffix
	r.mu.Unlock()
}

// Len returns the number of trusted patterns.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.exact) + len(r.suffix)
}

// set returns the map for kind; callers hold the lock.
func (r *Registry) set(kind domain.HostRuleKind) map[string]struct{} {
	if kind == domain.HostRuleSuffix {
		return r.suffix
	}
	return r.exact
}

var _ interceptor.TrustRegistry = (*Registry)(nil)
