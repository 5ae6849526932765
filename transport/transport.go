// Package transport defines the single-request boundary the execution engine
// drives, and its two implementations: Native (net/http) and Resty
// (go-resty/resty/v2).
//
// Contract
//   - Do issues exactly one request and never retries.
//   - Non-2xx responses are returned as responses, not errors.
//   - Failures without a usable response are ClientErrors (network or
//     timeout); a partially received response is attached when available.
//   - Cancelling ctx aborts the in-flight call.
//   - A FormData body is serialized by the transport itself, which chooses
//     the multipart boundary and sets the Content-Type header.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/gaborage/go-fetch/decode"
)

// Transport issues one request.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a function into a Transport.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Do calls f.
func (f Func) Do(ctx context.Context, req *Request) (*Response, error) { return f(ctx, req) }

// Request is a fully resolved outgoing request.
type Request struct {
	URL    string
	Method string
	Header nethttp.Header
	// Body is sent verbatim. Ignored when Form is set.
	Body []byte
	// Form is serialized as multipart/form-data by the transport.
	Form *FormData
	// ResponseType is the primitive type to read the body as.
	ResponseType decode.Type
}

// Response is the envelope returned by a transport.
type Response struct {
	StatusCode int
	Status     string
	Header     nethttp.Header
	Body       []byte
	ReadAs     decode.Type
	Elapsed    time.Duration
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return IsSuccessStatus(r.StatusCode) }

// Raw returns the decoder input for r.
func (r *Response) Raw() decode.Raw {
	return decode.Raw{Header: r.Header, Body: r.Body, ReadAs: r.ReadAs}
}

// validate performs the checks common to both transports.
func validate(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil", "request", nil)
	}
	if req.URL == "" {
		return NewValidationError("URL cannot be empty", "url", nil)
	}
	if _, err := url.Parse(req.URL); err != nil {
		return NewValidationError("URL is malformed", "url", err)
	}
	if req.Method == "" {
		req.Method = nethttp.MethodGet
	}
	if req.ResponseType == "" {
		req.ResponseType = decode.JSON
	}
	if req.Header == nil {
		req.Header = nethttp.Header{}
	}
	return nil
}

// sniffContentType fills in Content-Type for raw bodies the caller left
// untyped, so both transports put the same header on the wire.
func sniffContentType(req *Request) {
	if req.Form != nil || len(req.Body) == 0 || req.Header.Get("Content-Type") != "" {
		return
	}
	req.Header.Set("Content-Type", nethttp.DetectContentType(req.Body))
}

// classify maps a low-level client error into a ClientError.
func classify(ctx context.Context, err error, resp *Response) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		cause := context.Cause(ctx)
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return NewTimeoutError("context deadline exceeded", 0, cause)
		}
		return NewNetworkError("request aborted", CodeCanceled, resp, cause)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError("request timeout", 0, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return NewValidationError("URL is malformed", "url", err)
	}

	return NewNetworkError("request execution failed", networkCode(err), resp, err)
}

func networkCode(err error) string {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		if dnsErr.IsTemporary {
			return CodeTryAgain
		}
		return CodeNotFound
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return CodeConnReset
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return CodeNetUnreachable
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return CodeConnReset
	}
	if strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return CodeConnRefused
	}
	return CodeNetwork
}

func cloneHeader(h nethttp.Header) nethttp.Header {
	if h == nil {
		return nethttp.Header{}
	}
	return h.Clone()
}
