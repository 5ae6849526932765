package transport

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// FormData is an ordered multipart container. Transports encode it and pick
// the boundary, so callers never set Content-Type for it.
type FormData struct {
	entries []formEntry
}

type formEntry struct {
	name        string
	value       string
	filename    string
	contentType string
	data        []byte
}

// NewFormData creates an empty container.
func NewFormData() *FormData {
	return &FormData{}
}

// Append adds a plain field.
func (f *FormData) Append(name, value string) *FormData {
	f.entries = append(f.entries, formEntry{name: name, value: value})
	return f
}

// AppendFile adds a file part.
func (f *FormData) AppendFile(name, filename, contentType string, data []byte) *FormData {
	f.entries = append(f.entries, formEntry{name: name, filename: filename, contentType: contentType, data: data})
	return f
}

// Len returns the number of parts.
func (f *FormData) Len() int { return len(f.entries) }

// Get returns the first plain value for name.
func (f *FormData) Get(name string) (string, bool) {
	for _, e := range f.entries {
		if e.name == name && e.filename == "" {
			return e.value, true
		}
	}
	return "", false
}

// Names returns the part names in insertion order.
func (f *FormData) Names() []string {
	names := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		names = append(names, e.name)
	}
	return names
}

// Encode writes the container as multipart/form-data and returns the body and
// its Content-Type (which carries the generated boundary).
func (f *FormData) Encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, e := range f.entries {
		if e.filename == "" {
			if err := w.WriteField(e.name, e.value); err != nil {
				return nil, "", err
			}
			continue
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+escapeQuotes(e.name)+`"; filename="`+escapeQuotes(e.filename)+`"`)
		ct := e.contentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(e.data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// each visits every part in order; files get a reader over their data.
func (f *FormData) each(fn func(name, value, filename, contentType string, r io.Reader)) {
	for _, e := range f.entries {
		if e.filename == "" {
			fn(e.name, e.value, "", "", nil)
			continue
		}
		fn(e.name, "", e.filename, e.contentType, bytes.NewReader(e.data))
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
