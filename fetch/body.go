package fetch

import (
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/gaborage/go-fetch/decode"
	"github.com/gaborage/go-fetch/transport"
)

// readMethods never carry a body; their payload travels as query parameters.
var readMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodHead:   {},
	http.MethodDelete: {},
}

func isReadMethod(method string) bool {
	_, ok := readMethods[strings.ToUpper(method)]
	return ok
}

func bodyless(method string) bool {
	m := strings.ToUpper(method)
	return m == http.MethodGet || m == http.MethodHead
}

// resolveURL joins rel onto base when rel is relative.
func resolveURL(base, rel string) (string, error) {
	if base == "" {
		return rel, nil
	}
	u, err := url.Parse(rel)
	if err != nil {
		return "", transport.NewValidationError("URL is malformed", "url", err)
	}
	if u.IsAbs() {
		return rel, nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", transport.NewValidationError("base URL is malformed", "base_url", err)
	}
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	return b.ResolveReference(&url.URL{
		Path:     strings.TrimPrefix(u.Path, "/"),
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}).String(), nil
}

// mergeParams replaces the query of rawURL with its existing parameters plus
// params. Parameters in params override same-named ones already in the URL.
// The fragment is preserved.
func mergeParams(rawURL string, params map[string]any) (string, error) {
	if len(params) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", transport.NewValidationError("URL is malformed", "url", err)
	}
	q := u.Query()
	for key, value := range params {
		q.Del(key)
		for _, v := range paramValues(value) {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// stripQuery drops the query string of rawURL, keeping the fragment.
func stripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			rest := rawURL[i:]
			if j := strings.IndexByte(rest, '#'); j >= 0 {
				return rawURL[:i] + rest[j:]
			}
			return rawURL[:i]
		}
		return rawURL
	}
	u.RawQuery = ""
	u.ForceQuery = false
	return u.String()
}

func paramValues(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{""}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, formatValue(item))
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, formatValue(rv.Index(i).Interface()))
		}
		return out
	}
	return []string{formatValue(v)}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(t)
	}
	encoded, err := sonic.MarshalString(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return encoded
}

// encodedBody is a serialized request payload.
type encodedBody struct {
	data        []byte
	form        *FormData
	contentType string
}

// encodeBody serializes cfg.Body for transmission. Strings and byte slices
// are sent verbatim and FormData as multipart. Other values become JSON, or
// a multipart form when the response type is Form.
func encodeBody(cfg Config) (encodedBody, error) {
	switch b := cfg.Body.(type) {
	case nil:
		return encodedBody{}, nil
	case *FormData:
		return encodedBody{form: b}, nil
	case string:
		return encodedBody{data: []byte(b)}, nil
	case []byte:
		return encodedBody{data: b}, nil
	}

	if cfg.responseType() == decode.Form {
		form, err := toFormData(cfg.Body)
		if err != nil {
			return encodedBody{}, err
		}
		return encodedBody{form: form}, nil
	}

	data, err := sonic.Marshal(cfg.Body)
	if err != nil {
		return encodedBody{}, transport.NewValidationError("failed to serialize request body", "body", err)
	}
	return encodedBody{data: data, contentType: "application/json"}, nil
}

// toFormData converts an object payload into form fields, one per top-level
// key, in key order.
func toFormData(v any) (*FormData, error) {
	fields, ok := v.(map[string]any)
	if !ok {
		if strs, isStrMap := v.(map[string]string); isStrMap {
			fields = make(map[string]any, len(strs))
			for k, s := range strs {
				fields[k] = s
			}
		} else {
			encoded, err := sonic.Marshal(v)
			if err != nil {
				return nil, transport.NewValidationError("failed to serialize form body", "body", err)
			}
			if err := sonic.Unmarshal(encoded, &fields); err != nil {
				return nil, transport.NewValidationError("form body must be an object", "body", err)
			}
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	form := NewFormData()
	for _, k := range keys {
		switch value := fields[k].(type) {
		case *decode.FileField:
			form.AppendFile(k, value.Filename, value.ContentType, value.Data)
		case map[string]any:
			form.Append(k, formatValue(value))
		default:
			for _, s := range paramValues(value) {
				form.Append(k, s)
			}
		}
	}
	return form, nil
}
