package surrogates

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	logpkg "github.com/haukened/rr-intercept/internal/intercept/common/log"
	"github.com/haukened/rr-intercept/internal/intercept/common/utils"
	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

// ErrMalformedSurrogate reports a surrogate block that cannot be parsed.
var ErrMalformedSurrogate = errors.New("malformed surrogate")

const maxLineSize = 1 << 20

// Parse reads surrogate definitions. Each block starts with a header line
// "<host/path> <mime-type>" followed by payload lines and ends at a blank
// line or EOF. Lines starting with '#' between blocks are comments.
func Parse(r io.Reader, logger logpkg.Logger) ([]domain.Surrogate, error) {
	logger = logpkg.OrNoop(logger)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		out     []domain.Surrogate
		cur     *domain.Surrogate
		payload bytes.Buffer
		lineNum int
		start   int
	)
	flush := func() error {
		if cur == nil {
			return nil
		}
		cur.Payload = bytes.Clone(payload.Bytes())
		if err := cur.Validate(); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrMalformedSurrogate, start, err)
		}
		out = append(out, *cur)
		logger.Debug(map[string]any{"name": cur.Name, "mime": cur.MIMEType, "bytes": len(cur.Payload)}, "emit_surrogate")
		cur = nil
		payload.Reset()
		return nil
	}

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if cur != nil {
			payload.WriteString(line)
			payload.WriteByte('\n')
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %d: header must be \"<host/path> <mime-type>\"", ErrMalformedSurrogate, lineNum)
		}
		name, ok := normalizeName(fields[0])
		if !ok {
			return nil, fmt.Errorf("%w: line %d: invalid name %q", ErrMalformedSurrogate, lineNum, fields[0])
		}
		cur = &domain.Surrogate{Name: name, MIMEType: fields[1]}
		start = lineNum
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	logger.Debug(map[string]any{"count": len(out)}, "parse_surrogates_done")
	return out, nil
}

// LoadFile parses the surrogate file at path.
func LoadFile(path string, logger logpkg.Logger) ([]domain.Surrogate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open surrogates %q: %w", path, err)
	}
	defer f.Close()
	list, err := Parse(f, logger)
	if err != nil {
		return nil, fmt.Errorf("parse surrogates %q: %w", path, err)
	}
	return list, nil
}

// normalizeName canonicalizes the host part of a "host/path" name and drops
// any scheme. A name without a path matches the bare host root.
func normalizeName(raw string) (string, bool) {
	if _, rest, ok := strings.Cut(raw, "://"); ok {
		raw = rest
	}
	host, path, _ := strings.Cut(raw, "/")
	host = utils.CanonicalHostName(host)
	if host == "" {
		return "", false
	}
	return host + "/" + path, true
}
