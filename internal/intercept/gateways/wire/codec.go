// Package wire converts between the line-delimited JSON protocol spoken by
// embedding engines and domain objects.
package wire

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/haukened/rr-intercept/internal/intercept/domain"
)

// ErrNilRedirectTarget is returned when asked to encode a Redirect without a target.
var ErrNilRedirectTarget = errors.New("redirect decision has no target")

// RequestCodec decodes inbound requests and encodes outbound decisions.
type RequestCodec interface {
	DecodeRequest(data []byte) (Envelope, error)
	EncodeDecision(id string, d domain.Decision) ([]byte, error)
	EncodeError(id string, err error) ([]byte, error)
}

// Envelope pairs a decoded request with its correlation id.
type Envelope struct {
	ID      string
	Request domain.InterceptRequest
}

// requestMessage is one inbound line.
type requestMessage struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	MainFrame   bool   `json:"main_frame"`
	DocumentURL string `json:"document_url"`
	Accept      string `json:"accept,omitempty"`
}

// responseMessage is one outbound line. Body is base64 encoded by the JSON encoder.
type responseMessage struct {
	ID       string `json:"id"`
	Decision string `json:"decision,omitempty"`
	Target   string `json:"target,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Charset  string `json:"charset,omitempty"`
	Body     []byte `json:"body,omitempty"`
	Error    string `json:"error,omitempty"`
}

type jsonCodec struct{}

// NewJSONCodec returns the JSON-lines RequestCodec.
func NewJSONCodec() RequestCodec { return jsonCodec{} }

// DecodeRequest parses one JSON object. A URL that cannot be parsed is not an
// error; the request is returned with no URL.
func (jsonCodec) DecodeRequest(data []byte) (Envelope, error) {
	var m requestMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return Envelope{}, fmt.Errorf("decode request: %w", err)
	}
	return Envelope{
		ID:      m.ID,
		Request: domain.NewInterceptRequest(m.URL, m.MainFrame, m.DocumentURL, m.Accept),
	}, nil
}

// EncodeDecision renders d as a single JSON object without a trailing newline.
func (jsonCodec) EncodeDecision(id string, d domain.Decision) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("encode decision %q: nil decision", id)
	}
	m := responseMessage{ID: id, Decision: d.Kind().String()}
	switch v := d.(type) {
	case domain.Redirect:
		if v.Target == nil {
			return nil, fmt.Errorf("encode decision %q: %w", id, ErrNilRedirectTarget)
		}
		m.Target = v.Target.String()
	case domain.BlockWithSurrogate:
		m.MIMEType = v.MIMEType
		m.Charset = v.Charset
		m.Body = v.Body
	}
	return json.Marshal(m)
}

// EncodeError renders a per-request failure.
func (jsonCodec) EncodeError(id string, err error) ([]byte, error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return json.Marshal(responseMessage{ID: id, Error: msg})
}
