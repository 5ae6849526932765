package transport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-fetch/logger"
)

// Resty is the library-backed transport. Retries inside resty and
// retryablehttp are switched off: the execution engine owns retry policy.
type Resty struct {
	client  *resty.Client
	limiter *rate.Limiter
	logger  logger.Logger
}

// RestyOption configures a Resty transport.
type RestyOption func(*Resty)

// WithRestyClient replaces the underlying resty client.
func WithRestyClient(c *resty.Client) RestyOption {
	return func(r *Resty) {
		if c != nil {
			r.client = c
		}
	}
}

// WithRestyLimiter waits on limiter before every call.
func WithRestyLimiter(limiter *rate.Limiter) RestyOption {
	return func(r *Resty) { r.limiter = limiter }
}

// WithRestyLogger routes resty's own diagnostics and the transport's debug
// lines to log.
func WithRestyLogger(log logger.Logger) RestyOption {
	return func(r *Resty) {
		if log != nil {
			r.logger = log
		}
	}
}

// WithRestyUserAgent sets a default User-Agent header.
func WithRestyUserAgent(ua string) RestyOption {
	return func(r *Resty) {
		if ua != "" {
			r.client.SetHeader("User-Agent", ua)
		}
	}
}

// NewResty creates a resty-backed transport using retryablehttp's pooled
// round tripper.
func NewResty(opts ...RestyOption) *Resty {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	restyClient := resty.New().
		SetRetryCount(0).
		SetTransport(retryClient.HTTPClient.Transport)

	r := &Resty{
		client: restyClient,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.client.SetLogger(restyLogger{log: r.logger})
	return r
}

var _ Transport = (*Resty)(nil)

// Do performs one request.
func (r *Resty) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, classify(ctx, fmt.Errorf("rate limit error: %w", err), nil)
		}
	}

	outgoing := *req
	outgoing.Header = cloneHeader(req.Header)
	sniffContentType(&outgoing)
	if req.Form != nil {
		outgoing.Header.Del("Content-Type")
	}

	rreq := r.client.R().SetContext(ctx)
	for key, values := range outgoing.Header {
		rreq.SetHeaderMultiValues(map[string][]string{key: values})
	}

	switch {
	case req.Form != nil:
		var fields []*resty.MultipartField
		req.Form.each(func(name, value, filename, contentType string, body io.Reader) {
			if body == nil {
				body = strings.NewReader(value)
			}
			fields = append(fields, &resty.MultipartField{
				Param:       name,
				FileName:    filename,
				ContentType: contentType,
				Reader:      body,
			})
		})
		rreq.SetMultipartFields(fields...)
	case req.Body != nil:
		rreq.SetBody(req.Body)
	}

	r.logger.Debug().
		Str("direction", "outbound").
		Str("transport", "resty").
		Str("method", req.Method).
		Str("url", req.URL).
		Headers("headers", rreq.Header).
		Msg("transport request")

	start := time.Now()
	rresp, err := rreq.Execute(req.Method, req.URL)
	if err != nil {
		var partial *Response
		if rresp != nil && rresp.RawResponse != nil {
			partial = &Response{
				StatusCode: rresp.StatusCode(),
				Status:     rresp.Status(),
				Header:     rresp.Header(),
				ReadAs:     req.ResponseType,
				Elapsed:    time.Since(start),
			}
		}
		return nil, classify(ctx, err, partial)
	}

	resp := &Response{
		StatusCode: rresp.StatusCode(),
		Status:     rresp.Status(),
		Header:     rresp.Header(),
		Body:       rresp.Body(),
		ReadAs:     req.ResponseType,
		Elapsed:    time.Since(start),
	}

	r.logger.Debug().
		Str("direction", "inbound").
		Str("transport", "resty").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Elapsed).
		Msg("transport response")

	return resp, nil
}

// restyLogger adapts logger.Logger to resty.Logger.
type restyLogger struct {
	log logger.Logger
}

func (l restyLogger) Errorf(format string, v ...any) { l.log.Error().Msgf(format, v...) }

func (l restyLogger) Warnf(format string, v ...any) { l.log.Warn().Msgf(format, v...) }

func (l restyLogger) Debugf(format string, v ...any) { l.log.Debug().Msgf(format, v...) }
