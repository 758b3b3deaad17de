package domain

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ResourceKind classifies what a fetch is for, as declared by the request.
type ResourceKind uint8

const (
	ResourceUnknown ResourceKind = iota
	ResourceDocument
	ResourceScript
	ResourceImage
	ResourceStylesheet
	ResourceFont
	ResourceMedia
	ResourceXHR
	ResourceOther
)

var resourceKindNames = map[ResourceKind]string{
	ResourceUnknown:    "unknown",
	ResourceDocument:   "document",
	ResourceScript:     "script",
	ResourceImage:      "image",
	ResourceStylesheet: "stylesheet",
	ResourceFont:       "font",
	ResourceMedia:      "media",
	ResourceXHR:        "xhr",
	ResourceOther:      "other",
}

// String returns a stable string representation of the kind.
func (k ResourceKind) String() string {
	if s, ok := resourceKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ResourceKind(%d)", k)
}

// ParseResourceKind converts a name produced by String back into a ResourceKind (case-insensitive).
func ParseResourceKind(s string) (ResourceKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range resourceKindNames {
		if name == s {
			return k, nil
		}
	}
	return ResourceUnknown, fmt.Errorf("unsupported ResourceKind: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k ResourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ResourceKind) UnmarshalText(b []byte) error {
	v, err := ParseResourceKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

var acceptKinds = []struct {
	token string
	kind  ResourceKind
}{
	{"text/html", ResourceDocument},
	{"text/css", ResourceStylesheet},
	{"javascript", ResourceScript},
	{"ecmascript", ResourceScript},
	{"image/", ResourceImage},
	{"font/", ResourceFont},
	{"video/", ResourceMedia},
	{"audio/", ResourceMedia},
	{"application/json", ResourceXHR},
}

var extensionKinds = map[string]ResourceKind{
	".html":  ResourceDocument,
	".htm":   ResourceDocument,
	".js":    ResourceScript,
	".mjs":   ResourceScript,
	".css":   ResourceStylesheet,
	".png":   ResourceImage,
	".jpg":   ResourceImage,
	".jpeg":  ResourceImage,
	".gif":   ResourceImage,
	".webp":  ResourceImage,
	".svg":   ResourceImage,
	".ico":   ResourceImage,
	".bmp":   ResourceImage,
	".woff":  ResourceFont,
	".woff2": ResourceFont,
	".ttf":   ResourceFont,
	".otf":   ResourceFont,
	".eot":   ResourceFont,
	".mp4":   ResourceMedia,
	".webm":  ResourceMedia,
	".mp3":   ResourceMedia,
	".ogg":   ResourceMedia,
	".m3u8":  ResourceMedia,
	".json":  ResourceXHR,
}

// ClassifyResource derives a ResourceKind for a request.
//
// Main-frame requests are always documents. Otherwise the declared Accept header
// wins when it names a specific type; wildcard accepts fall back to the URL path
// extension. Anything left over is ResourceUnknown.
func ClassifyResource(u *url.URL, accept string, mainFrame bool) ResourceKind {
	if mainFrame {
		return ResourceDocument
	}
	accept = strings.ToLower(accept)
	for _, ak := range acceptKinds {
		if strings.Contains(accept, ak.token) {
			return ak.kind
		}
	}
	if u != nil {
		if k, ok := extensionKinds[strings.ToLower(path.Ext(u.Path))]; ok {
			return k
		}
	}
	return ResourceUnknown
}
