package decode

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// AcceptEncoding is the header value transports send when compression is enabled.
const AcceptEncoding = "gzip, zstd"

// Inflate decompresses body according to the Content-Encoding header. Unknown
// or absent encodings return body untouched. On success the Content-Encoding
// and Content-Length headers are removed.
func Inflate(header http.Header, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(header.Get("Content-Encoding")))
	if encoding == "" || encoding == "identity" || len(body) == 0 {
		return body, nil
	}

	var (
		out []byte
		err error
	)
	switch encoding {
	case "gzip", "x-gzip":
		out, err = gunzip(body)
	case "zstd":
		out, err = unzstd(body)
	default:
		return body, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to inflate %s body: %w", encoding, err)
	}

	header.Del("Content-Encoding")
	header.Del("Content-Length")
	return out, nil
}

func gunzip(body []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func unzstd(body []byte) ([]byte, error) {
	d, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.DecodeAll(body, nil)
}
