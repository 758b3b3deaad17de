package domain

import (
	"net/url"
	"strings"
)

// InterceptRequest describes one sub-resource fetch the rendering engine is about to issue.
// It is built by the caller for a single evaluation and never retained.
type InterceptRequest struct {
	URL            *url.URL     // nil when the engine supplied no usable URL
	IsForMainFrame bool         // true for the top-level document navigation
	DocumentURL    string       // URL of the issuing document, "" on the very first navigation
	Kind           ResourceKind // derived from Accept and URL path
	Accept         string       // declared Accept header, informational
}

// NewInterceptRequest parses rawURL and classifies the request.
// An unparsable or host-less rawURL leaves URL nil instead of failing.
func NewInterceptRequest(rawURL string, mainFrame bool, documentURL, accept string) InterceptRequest {
	var u *url.URL
	if raw := strings.TrimSpace(rawURL); raw != "" {
		if parsed, err := url.Parse(raw); err == nil && parsed.Host != "" {
			u = parsed
		}
	}
	return InterceptRequest{
		URL:            u,
		IsForMainFrame: mainFrame,
		DocumentURL:    strings.TrimSpace(documentURL),
		Kind:           ClassifyResource(u, accept, mainFrame),
		Accept:         accept,
	}
}

// HasURL reports whether the request carries a usable URL.
func (r InterceptRequest) HasURL() bool { return r.URL != nil }

// IsHTTP reports whether the request URL uses plaintext HTTP.
func (r InterceptRequest) IsHTTP() bool {
	return r.URL != nil && strings.EqualFold(r.URL.Scheme, "http")
}

// String returns the request URL, or "" when absent.
func (r InterceptRequest) String() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}
