package surrogates

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

func loadedStore(t *testing.T) *Store {
	t.Helper()
	list, err := Parse(strings.NewReader(sample), nil)
	require.NoError(t, err)
	s := NewStore(nil)
	s.Load(list)
	return s
}

func TestStore_Get(t *testing.T) {
	s := loadedStore(t)
	assert.Equal(t, 3, s.Len())

	tests := []struct {
		name     string
		raw      string
		wantName string
	}{
		{"exact host and path", "https://google-analytics.com/ga.js", "google-analytics.com/ga.js"},
		{"subdomain stripped", "http://ssl.www.google-analytics.com/ga.js?v=1#x", "google-analytics.com/ga.js"},
		{"host case and port", "https://TRACKER.example:8443/pixel.gif", "tracker.example/pixel.gif"},
		{"root path", "https://widget.example/", "widget.example/"},
		{"root without slash", "https://widget.example", "widget.example/"},
		{"different path", "https://google-analytics.com/analytics.js", ""},
		{"unrelated host", "https://example.org/ga.js", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			got := s.Get(u)
			if tt.wantName == "" {
				assert.Equal(t, domain.NoSurrogate(), got)
				return
			}
			require.True(t, got.Available)
			assert.Equal(t, tt.wantName, got.Name)
			assert.NotEmpty(t, got.MIMEType)
			assert.NotEmpty(t, got.Payload)
		})
	}
	assert.False(t, s.Get(nil).Available)
}

func TestStore_LoadReplaces(t *testing.T) {
	s := loadedStore(t)
	s.Load([]domain.Surrogate{{Name: "new.example/a.js", MIMEType: "application/javascript", Payload: []byte("1")}})
	assert.Equal(t, 1, s.Len())
	u, _ := url.Parse("https://google-analytics.com/ga.js")
	assert.False(t, s.Get(u).Available)
}
