package utils

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// GetApexDomain returns the registrable domain (eTLD+1) of name.
func GetApexDomain(name string) string {
	name = CanonicalHostName(name)
	apexDomain, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		apexDomain = name // Fallback to the original name if parsing fails
	}
	return apexDomain
}

// SameSite reports whether two hosts share a registrable domain.
// Empty hosts never match. IP literals only match themselves.
func SameSite(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ca, cb := CanonicalHostName(a), CanonicalHostName(b)
	if isIPLiteral(ca) || isIPLiteral(cb) {
		return net.ParseIP(strings.Trim(ca, "[]")).Equal(net.ParseIP(strings.Trim(cb, "[]")))
	}
	return GetApexDomain(ca) == GetApexDomain(cb)
}

func isIPLiteral(host string) bool {
	return net.ParseIP(strings.Trim(host, "[]")) != nil
}
