package parsers

import (
	"bufio"
	"io"
	"strings"
	"time"

	logpkg "github.com/haukened/rr-intercept/internal/intercept/common/log"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

// ParsePlainList parses a newline-delimited list of hosts into HostRule values.
// Default is exact; leading "*." or "." indicates suffix (apex-inclusive).
// A leading "@@" marks an exception (allow) entry, e.g. "@@*.cdn.example.com".
//
// Behavior:
// - Supports comments starting with '#' (inline or whole-line) or '!' (whole-line)
// - Trims surrounding whitespace and removes trailing dots via CanonicalHostName
// - Skips empty lines after trimming/stripping comments
// - De-duplicates by name, kind and action while preserving first-seen order
// - Each rule is attributed to the provided source and timestamped with now
func ParsePlainList(r io.Reader, source string, logger logpkg.Logger, now time.Time) ([]domain.HostRule, error) {
	scanner := bufio.NewScanner(r)

	seen := make(map[string]struct{})
	out := make([]domain.HostRule, 0, 256)
	logger.Debug(map[string]any{"source": source}, "parse_plain_list_start")
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripLineBOM(scanner.Text())

		if isEmpty, isComment := classifyLine(line); isEmpty || isComment {
			if isEmpty {
				logger.Debug(map[string]any{"line": lineNum}, "skip_empty")
			} else {
				logger.Debug(map[string]any{"line": lineNum}, "skip_comment")
			}
			continue
		}

		s := strings.TrimSpace(stripInlineComment(line))
		s, action := ruleActionFromRaw(s)
		kind := ruleKindFromRaw(s)
		name := normalizeHostName(s)

		if !isValidFQDN(name) {
			logger.Debug(map[string]any{"line": lineNum, "raw": s, "name": name}, "skip_invalid_fqdn")
			continue
		}

		seenKey := name + "|" + kind.String() + "|" + action.String()
		if _, ok := seen[seenKey]; ok {
			logger.Debug(map[string]any{"line": lineNum, "name": name, "kind": kind.String()}, "skip_duplicate")
			continue
		}

		rule, err := domain.NewHostRule(name, kind, action, source, now)
		if err != nil {
			logger.Debug(map[string]any{"line": lineNum, "name": name, "error": err.Error()}, "skip_constructor_error")
			continue
		}
		out = append(out, rule)
		seen[seenKey] = struct{}{}
		logger.Debug(map[string]any{"line": lineNum, "name": rule.Name, "kind": rule.Kind.String(), "action": rule.Action.String()}, "emit_rule")
	}

	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_plain_list_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_plain_list_done")
	return out, nil
}
