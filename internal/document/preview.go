package document

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// inlinePrefixes are the MIME types whose bytes are returned for in-browser preview.
var inlinePrefixes = []string{"image/", "application/pdf", "video/", "audio/", "text/", docxMIME}

var htmlPolicy = bluemonday.UGCPolicy()

// Preview is one of Inline, Rendered or Unsupported.
type Preview interface {
	Kind() string
	Supported() bool
}

// Inline carries the raw bytes of a browser-renderable file.
type Inline struct {
	MimeType    string
	DisplayName string
	Data        []byte
}

// Rendered carries sanitized HTML.
type Rendered struct {
	MimeType    string
	DisplayName string
	HTML        string
}

// Unsupported points the client at a download instead of a payload.
type Unsupported struct {
	MimeType    string
	DisplayName string
	DownloadURL string
}

func (Inline) Kind() string      { return "inline" }
func (Rendered) Kind() string    { return "rendered" }
func (Unsupported) Kind() string { return "unsupported" }

func (Inline) Supported() bool      { return true }
func (Rendered) Supported() bool    { return true }
func (Unsupported) Supported() bool { return false }

type previewJSON struct {
	Kind             string `json:"kind"`
	MimeType         string `json:"mimeType"`
	DisplayName      string `json:"displayName"`
	PreviewSupported bool   `json:"previewSupported"`
	Base64           string `json:"base64,omitempty"`
	HTML             string `json:"html,omitempty"`
	DownloadURL      string `json:"downloadUrl,omitempty"`
}

func (p Inline) MarshalJSON() ([]byte, error) {
	return json.Marshal(previewJSON{Kind: p.Kind(), MimeType: p.MimeType, DisplayName: p.DisplayName, PreviewSupported: true,
		Base64: base64.StdEncoding.EncodeToString(p.Data)})
}

func (p Rendered) MarshalJSON() ([]byte, error) {
	return json.Marshal(previewJSON{Kind: p.Kind(), MimeType: p.MimeType, DisplayName: p.DisplayName, PreviewSupported: true, HTML: p.HTML})
}

func (p Unsupported) MarshalJSON() ([]byte, error) {
	return json.Marshal(previewJSON{Kind: p.Kind(), MimeType: p.MimeType, DisplayName: p.DisplayName, DownloadURL: p.DownloadURL})
}

// BaseMIME lowercases mime and strips parameters such as charset.
func BaseMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// PreviewKind classifies a MIME type: "rendered" for HTML, "inline" for the
// allow-list, "unsupported" for everything else.
func PreviewKind(mime string) string {
	m := BaseMIME(mime)
	if m == "text/html" {
		return "rendered"
	}
	for _, p := range inlinePrefixes {
		if strings.HasPrefix(m, p) {
			return "inline"
		}
	}
	return "unsupported"
}

// NewPreview builds the variant for mime. downloadURL is only used for
// unsupported types; data is ignored for them.
func NewPreview(name, mime string, data []byte, downloadURL string) Preview {
	switch PreviewKind(mime) {
	case "rendered":
		return Rendered{MimeType: mime, DisplayName: name, HTML: string(htmlPolicy.SanitizeBytes(data))}
	case "inline":
		return Inline{MimeType: mime, DisplayName: name, Data: data}
	}
	return Unsupported{MimeType: mime, DisplayName: name, DownloadURL: downloadURL}
}
