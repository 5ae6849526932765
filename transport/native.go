package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-fetch/decode"
	"github.com/gaborage/go-fetch/logger"
)

// Native is the minimal transport built directly on net/http.
type Native struct {
	httpClient *nethttp.Client
	limiter    *rate.Limiter
	logger     logger.Logger
	compress   bool
	userAgent  string
}

// NativeOption configures a Native transport.
type NativeOption func(*Native)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *nethttp.Client) NativeOption {
	return func(n *Native) {
		if c != nil {
			n.httpClient = c
		}
	}
}

// WithNativeLimiter waits on limiter before every call.
func WithNativeLimiter(limiter *rate.Limiter) NativeOption {
	return func(n *Native) { n.limiter = limiter }
}

// WithNativeLogger sets the logger used for request/response debug lines.
func WithNativeLogger(log logger.Logger) NativeOption {
	return func(n *Native) {
		if log != nil {
			n.logger = log
		}
	}
}

// WithCompression asks servers for gzip/zstd bodies and inflates them.
func WithCompression() NativeOption {
	return func(n *Native) { n.compress = true }
}

// WithNativeUserAgent sets a User-Agent for requests that do not carry one.
func WithNativeUserAgent(ua string) NativeOption {
	return func(n *Native) { n.userAgent = ua }
}

// WithTracing wraps the client's round tripper with otelhttp so every call
// produces a client span and propagates trace context.
func WithTracing(opts ...otelhttp.Option) NativeOption {
	return func(n *Native) {
		base := n.httpClient.Transport
		if base == nil {
			base = nethttp.DefaultTransport
		}
		client := *n.httpClient
		client.Transport = otelhttp.NewTransport(base, opts...)
		n.httpClient = &client
	}
}

// NewNative creates a net/http backed transport. Timeouts are owned by the
// caller's context, so the client has none of its own.
func NewNative(opts ...NativeOption) *Native {
	n := &Native{
		httpClient: &nethttp.Client{},
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var _ Transport = (*Native)(nil)

// Do performs one request.
func (n *Native) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return nil, classify(ctx, fmt.Errorf("rate limit error: %w", err), nil)
		}
	}

	httpReq, err := n.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	n.logger.Debug().
		Str("direction", "outbound").
		Str("transport", "native").
		Str("method", req.Method).
		Str("url", req.URL).
		Headers("headers", httpReq.Header).
		Msg("transport request")

	start := time.Now()
	httpResp, err := n.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, err, nil)
	}
	defer httpResp.Body.Close()

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		ReadAs:     req.ResponseType,
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		resp.Elapsed = time.Since(start)
		return nil, classify(ctx, err, resp)
	}
	if n.compress {
		if body, err = decode.Inflate(resp.Header, body); err != nil {
			return nil, NewNetworkError("failed to read response body", CodeBadResponseBody, resp, err)
		}
	}
	resp.Body = body
	resp.Elapsed = time.Since(start)

	n.logger.Debug().
		Str("direction", "inbound").
		Str("transport", "native").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Elapsed).
		Msg("transport response")

	return resp, nil
}

func (n *Native) buildRequest(ctx context.Context, req *Request) (*nethttp.Request, error) {
	header := cloneHeader(req.Header)
	outgoing := *req
	outgoing.Header = header
	sniffContentType(&outgoing)

	var body io.Reader
	switch {
	case req.Form != nil:
		encoded, contentType, err := req.Form.Encode()
		if err != nil {
			return nil, NewValidationError("failed to encode form body", "body", err)
		}
		header.Set("Content-Type", contentType)
		body = bytes.NewReader(encoded)
	case req.Body != nil:
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, NewValidationError("failed to create HTTP request", "url", err)
	}
	httpReq.Header = header

	if n.userAgent != "" && header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", n.userAgent)
	}
	if n.compress && header.Get("Accept-Encoding") == "" {
		httpReq.Header.Set("Accept-Encoding", decode.AcceptEncoding)
	}
	return httpReq, nil
}
