package parsers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/haukened/rr-intercept/internal/intercept/common/log"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "ads-network", SourceName("/etc/rr-intercept/trackers/ads-network.txt"))
	assert.Equal(t, "hosts", SourceName("hosts"))
	assert.Equal(t, "social.hosts", SourceName("/x/social.hosts.txt"))
}

func TestLoadFile_SelectsParser(t *testing.T) {
	dir := t.TempDir()
	plain := writeFile(t, dir, "ads.txt", "*.ads.example\n")
	hosts := writeFile(t, dir, "social.hosts", "0.0.0.0 pixel.social.example\n")
	now := time.Unix(1723550000, 0)

	rules, err := LoadFile(plain, log.NewNoopLogger(), now)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.True(t, rules[0].IsSuffix())
	assert.Equal(t, "ads", rules[0].Source)

	rules, err = LoadFile(hosts, log.NewNoopLogger(), now)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "pixel.social.example", rules[0].Name)
	assert.Equal(t, "social", rules[0].Source)
}

func TestLoadFiles_AggregatesErrors(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "a.example.com\n")
	b := writeFile(t, dir, "b.txt", "b.example.com\n")
	missing1 := filepath.Join(dir, "missing1.txt")
	missing2 := filepath.Join(dir, "missing2.txt")

	rules, err := LoadFiles([]string{a, missing1, b, missing2}, log.NewNoopLogger(), time.Now())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	require.Len(t, rules, 2)
	assert.Equal(t, "a.example.com", rules[0].Name)
	assert.Equal(t, "b.example.com", rules[1].Name)
}

func TestLoadFiles_Empty(t *testing.T) {
	rules, err := LoadFiles(nil, log.NewNoopLogger(), time.Now())
	assert.NoError(t, err)
	assert.Empty(t, rules)
}
