package parsers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"

	logpkg "github.com/haukened/rr-intercept/internal/intercept/common/log"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

// SourceName derives a rule source (network name) from a list path:
// "/etc/rr-intercept/trackers/ads-network.txt" → "ads-network".
func SourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// isHostsFormat reports whether path should be parsed as a hosts file.
func isHostsFormat(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	return base == "hosts" || strings.HasSuffix(base, ".hosts")
}

// LoadFile parses a single list file, selecting the parser by file name.
func LoadFile(path string, logger logpkg.Logger, now time.Time) ([]domain.HostRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list %q: %w", path, err)
	}
	defer f.Close()

	source := SourceName(path)
	var rules []domain.HostRule
	if isHostsFormat(path) {
		rules, err = ParseHostsFile(f, source, logger, now)
	} else {
		rules, err = ParsePlainList(f, source, logger, now)
	}
	if err != nil {
		return nil, fmt.Errorf("parse list %q: %w", path, err)
	}
	return rules, nil
}

// LoadFiles parses every path and concatenates the rules in order.
// A failing file does not stop the others; all failures are combined into the returned error.
func LoadFiles(paths []string, logger logpkg.Logger, now time.Time) ([]domain.HostRule, error) {
	var (
		all  []domain.HostRule
		errs error
	)
	for _, p := range paths {
		rules, err := LoadFile(p, logger, now)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		all = append(all, rules...)
	}
	return all, errs
}
