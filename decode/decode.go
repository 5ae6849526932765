package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// utf8BOM is stripped before the second JSON parse attempt.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode converts raw into the representation selected by want.
// JSON decoding never fails; it falls back to the body text.
func Decode(raw Raw, want Type) (any, error) {
	switch want {
	case JSON, "":
		return decodeJSON(raw), nil
	case Text:
		return decodeText(raw)
	case Blob:
		return decodeBlob(raw), nil
	case ArrayBuffer:
		return raw.Body, nil
	case Document:
		return decodeDocument(raw)
	case Form:
		return decodeForm(raw)
	default:
		return nil, fmt.Errorf("unknown response type %q", want)
	}
}

func decodeJSON(raw Raw) any {
	if len(raw.Body) == 0 {
		return nil
	}

	var v any
	if err := sonic.Unmarshal(raw.Body, &v); err == nil {
		return v
	}

	text, err := decodeText(raw)
	if err != nil {
		text = string(raw.Body)
	}
	s, _ := text.(string)

	trimmed := strings.TrimSpace(strings.TrimPrefix(s, string(utf8BOM)))
	if err := sonic.UnmarshalString(trimmed, &v); err == nil {
		return v
	}
	return s
}

func decodeText(raw Raw) (any, error) {
	label := charsetLabel(raw.contentType())
	if label == "" || isUTF8(label) {
		return string(raw.Body), nil
	}

	r, err := charset.NewReaderLabel(label, bytes.NewReader(raw.Body))
	if err != nil {
		return string(raw.Body), nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s body: %w", label, err)
	}
	return string(b), nil
}

func decodeBlob(raw Raw) *BlobData {
	ct := raw.contentType()
	if ct == "" {
		ct = mimetype.Detect(raw.Body).String()
	}
	return &BlobData{Type: ct, Data: raw.Body}
}

func decodeDocument(raw Raw) (*goquery.Document, error) {
	label := charsetLabel(raw.contentType())
	if label == "" {
		label = DetectCharset(raw.Body)
	}

	var r io.Reader = bytes.NewReader(raw.Body)
	if !isUTF8(label) {
		if cr, err := charset.NewReaderLabel(label, r); err == nil {
			r = cr
		} else {
			r = bytes.NewReader(raw.Body)
		}
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return doc, nil
}

// DetectCharset guesses the charset of an HTML or text body, defaulting to utf-8.
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func decodeForm(raw Raw) (*FormFields, error) {
	mediaType, params, err := mime.ParseMediaType(raw.contentType())
	if err != nil {
		return nil, fmt.Errorf("form response without usable content type: %w", err)
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		return decodeMultipart(raw.Body, params["boundary"])
	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(raw.Body))
		if err != nil {
			return nil, fmt.Errorf("failed to parse urlencoded form: %w", err)
		}
		return &FormFields{Values: values, Files: map[string][]*FileField{}}, nil
	default:
		return nil, fmt.Errorf("cannot decode %s as form", mediaType)
	}
}

func decodeMultipart(body []byte, boundary string) (*FormFields, error) {
	if boundary == "" {
		return nil, errors.New("multipart response without boundary")
	}

	fields := &FormFields{
		Values: map[string][]string{},
		Files:  map[string][]*FileField{},
	}

	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return fields, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read multipart body: %w", err)
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read part %q: %w", part.FormName(), err)
		}

		name := part.FormName()
		if part.FileName() != "" {
			fields.Files[name] = append(fields.Files[name], &FileField{
				Filename:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Data:        data,
			})
			continue
		}
		fields.Values[name] = append(fields.Values[name], string(data))
	}
}

func charsetLabel(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

func isUTF8(label string) bool {
	return label == "utf-8" || label == "utf8"
}
