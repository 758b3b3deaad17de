package domain

import (
	"fmt"
	"strings"
	"time"
)

// HostRuleKind defines how a rule matches host names.
//
// exact  - matches the host only (name == requested host)
// suffix - matches the host and any subdomain (apex-inclusive suffix)
type HostRuleKind uint8

const (
	// HostRuleExact matches only the exact host.
	HostRuleExact HostRuleKind = iota
	// HostRuleSuffix matches the host and all its subdomains (apex-inclusive).
	HostRuleSuffix
)

// String returns a stable string representation of the rule kind.
func (k HostRuleKind) String() string {
	switch k {
	case HostRuleExact:
		return "exact"
	case HostRuleSuffix:
		return "suffix"
	default:
		return fmt.Sprintf("HostRuleKind(%d)", k)
	}
}

// ParseHostRuleKind converts a string into a HostRuleKind.
// Accepts: "exact", "suffix" (case-insensitive).
func ParseHostRuleKind(s string) (HostRuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact":
		return HostRuleExact, nil
	case "suffix":
		return HostRuleSuffix, nil
	default:
		return 0, fmt.Errorf("unsupported HostRuleKind: %q", s)
	}
}

// RuleAction says what a matching rule means to its consumer.
//
// block - the host is listed (tracker to block, host to upgrade, site to trust)
// allow - exception; a tracker match is observed but not blocked, an upgrade is suppressed
type RuleAction uint8

const (
	RuleBlock RuleAction = iota
	RuleAllow
)

// String returns a stable string representation of the action.
func (a RuleAction) String() string {
	switch a {
	case RuleBlock:
		return "block"
	case RuleAllow:
		return "allow"
	default:
		return fmt.Sprintf("RuleAction(%d)", a)
	}
}

// ParseRuleAction converts a string into a RuleAction.
func ParseRuleAction(s string) (RuleAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "block":
		return RuleBlock, nil
	case "allow":
		return RuleAllow, nil
	default:
		return 0, fmt.Errorf("unsupported RuleAction: %q", s)
	}
}

// HostRule is a single host-matching rule sourced from a list file.
//
// Notes:
// - Name is expected to be canonical (see utils.CanonicalHostName).
// - Source identifies the list the rule came from; for tracker lists it doubles as the network name.
// - AddedAt records when the rule was ingested.
type HostRule struct {
	Name    string
	Kind    HostRuleKind
	Action  RuleAction
	Source  string
	AddedAt time.Time
}

// NewHostRule constructs a HostRule and validates its fields.
func NewHostRule(name string, kind HostRuleKind, action RuleAction, source string, addedAt time.Time) (HostRule, error) {
	r := HostRule{
		Name:    strings.TrimSpace(name),
		Kind:    kind,
		Action:  action,
		Source:  strings.TrimSpace(source),
		AddedAt: addedAt,
	}
	if err := r.Validate(); err != nil {
		return HostRule{}, err
	}
	return r, nil
}

// Validate checks the HostRule for required fields and supported values.
func (r HostRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if r.Source == "" {
		return fmt.Errorf("rule source must not be empty")
	}
	if r.AddedAt.IsZero() {
		return fmt.Errorf("rule addedAt must be set")
	}
	switch r.Kind {
	case HostRuleExact, HostRuleSuffix:
	default:
		return fmt.Errorf("unsupported HostRuleKind: %d", r.Kind)
	}
	switch r.Action {
	case RuleBlock, RuleAllow:
	default:
		return fmt.Errorf("unsupported RuleAction: %d", r.Action)
	}
	return nil
}

// IsExact returns true when the rule kind is exact.
func (r HostRule) IsExact() bool { return r.Kind == HostRuleExact }

// IsSuffix returns true when the rule kind is suffix (apex-inclusive).
func (r HostRule) IsSuffix() bool { return r.Kind == HostRuleSuffix }

// IsAllow returns true for exception rules.
func (r HostRule) IsAllow() bool { return r.Action == RuleAllow }

// RuleDecision is the outcome of looking a host up in a rule index.
// Pure value type, no external dependencies.
type RuleDecision struct {
	Matched     bool         // true if any rule matched
	Action      RuleAction   // action of the matched rule
	MatchedRule string       // rule name that matched
	Source      string       // source of the matched rule
	Kind        HostRuleKind // kind of the matched rule
}

// Blocked reports whether a matching rule blocks.
func (d RuleDecision) Blocked() bool { return d.Matched && d.Action == RuleBlock }

// NoMatch returns a decision with no rule matched.
func NoMatch() RuleDecision { return RuleDecision{} }

// DecisionFor materializes the decision for a matched rule.
func DecisionFor(r HostRule) RuleDecision {
	return RuleDecision{Matched: true, Action: r.Action, MatchedRule: r.Name, Source: r.Source, Kind: r.Kind}
}
