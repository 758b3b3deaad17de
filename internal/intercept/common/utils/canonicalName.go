package utils

import (
	"net/url"
	"strings"
)

// CanonicalHostName returns a host name in canonical form:
// - Lowercased
// - Trimmed of surrounding whitespace
// - No trailing dot
// - No port
func CanonicalHostName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	// a single colon is a port separator; more than one is a bare IPv6 literal
	if strings.Count(name, ":") == 1 {
		name, _, _ = strings.Cut(name, ":")
	}
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// HostOf returns the canonical host of u, or "" when u is nil or has no host.
func HostOf(u *url.URL) string {
	if u == nil {
		return ""
	}
	return CanonicalHostName(u.Hostname())
}

// HostOfRaw parses raw as an absolute URL and returns its canonical host.
// ok is false when raw cannot be parsed or carries no host.
func HostOfRaw(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	h := HostOf(u)
	return h, h != ""
}

// Anchors returns name followed by each parent domain, most-specific first:
// "a.b.example.com" → ["a.b.example.com", "b.example.com", "example.com", "com"].
func Anchors(name string) []string {
	if name == "" {
		return nil
	}
	out := []string{name}
	for {
		i := strings.IndexByte(name, '.')
		if i < 0 || i == len(name)-1 {
			return out
		}
		name = name[i+1:]
		out = append(out, name)
	}
}
