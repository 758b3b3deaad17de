package wire

import (
	"errors"
	"net/url"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

func TestDecodeRequest(t *testing.T) {
	c := NewJSONCodec()
	env, err := c.DecodeRequest([]byte(`{"id":"7","url":"http://cdn.example/app.js","main_frame":false,"document_url":"https://site.example/","accept":"*/*"}`))
	require.NoError(t, err)
	assert.Equal(t, "7", env.ID)
	require.NotNil(t, env.Request.URL)
	assert.Equal(t, "cdn.example", env.Request.URL.Host)
	assert.False(t, env.Request.IsForMainFrame)
	assert.Equal(t, "https://site.example/", env.Request.DocumentURL)
	assert.Equal(t, domain.ResourceScript, env.Request.Kind)
}

func TestDecodeRequest_BadURLIsAbsent(t *testing.T) {
	env, err := NewJSONCodec().DecodeRequest([]byte(`{"id":"1","url":"::nope","main_frame":true}`))
	require.NoError(t, err)
	assert.Nil(t, env.Request.URL)
	assert.True(t, env.Request.IsForMainFrame)
}

func TestDecodeRequest_InvalidJSON(t *testing.T) {
	_, err := NewJSONCodec().DecodeRequest([]byte(`{"id":`))
	assert.Error(t, err)
}

func decodeResponse(t *testing.T, b []byte) responseMessage {
	t.Helper()
	var m responseMessage
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestEncodeDecision(t *testing.T) {
	c := NewJSONCodec()
	target, _ := url.Parse("https://site.example/")

	tests := []struct {
		name string
		d    domain.Decision
		want responseMessage
	}{
		{"continue", domain.Continue{}, responseMessage{ID: "1", Decision: "continue"}},
		{"block", domain.Block{}, responseMessage{ID: "1", Decision: "block"}},
		{"redirect", domain.Redirect{Target: target}, responseMessage{ID: "1", Decision: "redirect", Target: "https://site.example/"}},
		{"surrogate", domain.BlockWithSurrogate{MIMEType: "application/javascript", Charset: "utf-8", Body: []byte("void 0;")},
			responseMessage{ID: "1", Decision: "block_with_surrogate", MIMEType: "application/javascript", Charset: "utf-8", Body: []byte("void 0;")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := c.EncodeDecision("1", tt.d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decodeResponse(t, b))
		})
	}
}

func TestEncodeDecision_Errors(t *testing.T) {
	c := NewJSONCodec()
	_, err := c.EncodeDecision("1", domain.Redirect{})
	assert.ErrorIs(t, err, ErrNilRedirectTarget)
	_, err = c.EncodeDecision("1", nil)
	assert.Error(t, err)
}

func TestEncodeError(t *testing.T) {
	c := NewJSONCodec()
	b, err := c.EncodeError("9", errors.New("bad line"))
	require.NoError(t, err)
	assert.Equal(t, responseMessage{ID: "9", Error: "bad line"}, decodeResponse(t, b))

	b, err = c.EncodeError("9", nil)
	require.NoError(t, err)
	assert.Equal(t, "unknown error", decodeResponse(t, b).Error)
}
