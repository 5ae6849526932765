// Package decode turns raw transport bodies into one of six typed
// representations.
//
// Transports only understand the primitive types (JSON, Text, Blob,
// ArrayBuffer). Document and Form are downgraded with TransportType before the
// call and re-derived by Decode afterwards, so callers never branch on the
// transport in use.
package decode

import (
	"fmt"
	"net/http"
	"strings"
)

// Type selects how a response body is decoded.
type Type string

const (
	JSON        Type = "json"
	Text        Type = "text"
	Blob        Type = "blob"
	ArrayBuffer Type = "arraybuffer"
	Document    Type = "document"
	Form        Type = "form"
)

// Valid reports whether t is one of the six known types.
func (t Type) Valid() bool {
	switch t {
	case JSON, Text, Blob, ArrayBuffer, Document, Form:
		return true
	}
	return false
}

// ParseType parses a case-insensitive type name. An empty string yields JSON.
func ParseType(s string) (Type, error) {
	if s == "" {
		return JSON, nil
	}
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown response type %q", s)
	}
	return t, nil
}

// TransportType maps a requested type to the primitive type a transport
// reads the body as.
func TransportType(t Type) Type {
	switch t {
	case Document:
		return Text
	case Form:
		return Blob
	case "":
		return JSON
	}
	return t
}

// Raw is what a transport hands back before decoding.
type Raw struct {
	Header http.Header
	Body   []byte
	// ReadAs is the primitive type the transport used, see TransportType.
	ReadAs Type
}

func (r Raw) contentType() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// BlobData is a binary payload tagged with its media type.
type BlobData struct {
	Type string
	Data []byte
}

// Size returns the payload length in bytes.
func (b *BlobData) Size() int { return len(b.Data) }

// Text returns the payload as a string.
func (b *BlobData) Text() string { return string(b.Data) }

// FileField is a file part of a multipart body.
type FileField struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FormFields is a decoded form body.
type FormFields struct {
	Values map[string][]string
	Files  map[string][]*FileField
}

// Get returns the first value for key, or "".
func (f *FormFields) Get(key string) string {
	if f == nil || len(f.Values[key]) == 0 {
		return ""
	}
	return f.Values[key][0]
}

// File returns the first file for key, or nil.
func (f *FormFields) File(key string) *FileField {
	if f == nil || len(f.Files[key]) == 0 {
		return nil
	}
	return f.Files[key][0]
}
