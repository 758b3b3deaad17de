package parsers

import (
	"strings"
	"unicode"

	"github.com/haukened/rr-intercept/internal/intercept/common/utils"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

// exceptionMarker prefixes an allow (exception) entry in plain lists, as in "@@cdn.example.com".
const exceptionMarker = "@@"

// ruleKindFromRaw decides the HostRuleKind based on the raw, uncanonicalized input.
// Returns HostRuleSuffix if the name begins with "*." or ".", otherwise HostRuleExact.
func ruleKindFromRaw(raw string) domain.HostRuleKind {
	if strings.HasPrefix(raw, "*.") || strings.HasPrefix(raw, ".") {
		return domain.HostRuleSuffix
	}
	return domain.HostRuleExact
}

// ruleActionFromRaw strips a leading exception marker and reports the action it implies.
func ruleActionFromRaw(raw string) (string, domain.RuleAction) {
	if rest, ok := strings.CutPrefix(raw, exceptionMarker); ok {
		return rest, domain.RuleAllow
	}
	return raw, domain.RuleBlock
}

// isValidFQDN checks whether the provided string is a usable host name:
//   - The total length must not exceed 255 characters.
//   - The name must contain at least two labels.
//   - Each label must be between 1 and 63 characters long.
//   - The first label must start with a letter or number.
func isValidFQDN(name string) bool {
	if len(name) > 255 {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) > 63 || len(label) == 0 {
			return false
		}
	}
	runes := []rune(labels[0])
	return isAlphaNumeric(runes[0])
}

// normalizeHostName trims whitespace, removes any leading "*." or "." marker and
// returns the canonical host name.
func normalizeHostName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "*.")
	name = strings.TrimPrefix(name, ".")
	return utils.CanonicalHostName(name)
}

// isAlphaNumeric reports whether the given rune is a letter or digit.
func isAlphaNumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// stripLineBOM removes a UTF-8 byte order mark at the start of a line.
func stripLineBOM(line string) string {
	return strings.TrimPrefix(line, "\uFEFF")
}

// classifyLine reports whether a raw line is empty or a full-line comment.
func classifyLine(line string) (isEmpty, isComment bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true, false
	}
	return false, strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!")
}

// stripInlineComment drops everything from the first '#'.
func stripInlineComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}

// ParsePattern parses a single host pattern such as "example.com" (exact) or
// "*.example.com" / ".example.com" (suffix). ok is false for unusable names.
func ParsePattern(raw string) (name string, kind domain.HostRuleKind, ok bool) {
	raw = strings.TrimSpace(raw)
	kind = ruleKindFromRaw(raw)
	name = normalizeHostName(raw)
	if !isValidFQDN(name) {
		return "", kind, false
	}
	return name, kind, true
}
