package domain

import (
	"fmt"
	"strings"
)

// Surrogate is an inert stand-in for a blocked resource, e.g. a no-op analytics stub.
//
// Name is the host+path pattern it replaces ("google-analytics.com/analytics.js");
// it is matched against request URLs with the scheme, query and leading subdomains ignored.
type Surrogate struct {
	Name     string
	MIMEType string
	Payload  []byte
}

// Validate checks required fields.
func (s Surrogate) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("surrogate name must not be empty")
	}
	if strings.TrimSpace(s.MIMEType) == "" {
		return fmt.Errorf("surrogate %q: mime type must not be empty", s.Name)
	}
	if len(s.Payload) == 0 {
		return fmt.Errorf("surrogate %q: payload must not be empty", s.Name)
	}
	return nil
}

// SurrogateLookup is the result of asking the surrogate store about a URL.
type SurrogateLookup struct {
	Available bool
	Name      string
	MIMEType  string
	Payload   []byte
}

// NoSurrogate returns a lookup with no surrogate available.
func NoSurrogate() SurrogateLookup { return SurrogateLookup{} }

// Lookup converts a stored surrogate into an available lookup.
func (s Surrogate) Lookup() SurrogateLookup {
	return SurrogateLookup{Available: true, Name: s.Name, MIMEType: s.MIMEType, Payload: s.Payload}
}
