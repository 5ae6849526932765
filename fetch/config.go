// Package fetch is a reactive, cancellable request execution engine.
//
// A Request binds a URL source and a Config to a Transport. Execute runs one
// logical request: the pre-request interceptor, one or more transport
// attempts with retry and backoff, response decoding, the post-response or
// error interceptor, and the observer callbacks. Every step is reflected in
// an observable State.
//
// Attach wires the request to its reactive sources (URL, network status,
// visibility) so that it re-executes, cancels or resumes on its own.
package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/gaborage/go-fetch/decode"
	"github.com/gaborage/go-fetch/reactive"
	"github.com/gaborage/go-fetch/retry"
	"github.com/gaborage/go-fetch/transport"
)

// Config describes one logical request. The zero value is a JSON GET with
// no timeout and no retries.
type Config struct {
	// BaseURL is prefixed to relative URLs.
	BaseURL string
	Method  string
	// Body is a string or []byte (sent verbatim), a *FormData, or any other
	// value (serialized as JSON, or field by field when ResponseType is Form).
	Body    any
	Params  map[string]any
	Headers map[string]string
	// ResponseType is how the response body is decoded. Empty means JSON.
	ResponseType decode.Type
	// Timeout bounds each attempt. Zero means no timeout.
	Timeout    time.Duration
	Retry      RetryPolicy
	Reactivity ReactivityFlags
	// UpdateDataOnError lets a fallback payload from OnFetchError replace the
	// current data.
	UpdateDataOnError *bool
	InitialData       any
	// Custom carries caller values through to the interceptors untouched.
	Custom       map[string]any
	Interceptors Interceptors
}

// RetryPolicy controls re-attempts after retryable failures.
type RetryPolicy struct {
	Enabled *bool
	// Count is the maximum number of transport calls per execution.
	Count     int
	Delay     time.Duration
	DelayFunc retry.DelayFunc
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	return retry.Delay(retry.Policy{Delay: p.Delay, DelayFunc: p.DelayFunc}, attempt)
}

// ReactivityFlags select which reactive sources drive a request once it is
// attached.
type ReactivityFlags struct {
	// Immediate executes once on Attach.
	Immediate *bool
	// Refetch re-executes whenever a reactive URL changes. It only takes
	// effect together with Immediate.
	Refetch            *bool
	RefetchOnReconnect *bool
	RefetchOnFocus     *bool
	CancelOnBlur       *bool
}

// Bool returns a pointer to v for the optional flags of Config. A nil flag
// leaves the global default in place; an explicit false overrides it.
func Bool(v bool) *bool { return &v }

func isSet(b *bool) bool { return b != nil && *b }

// FormData is an ordered multipart form body.
type FormData = transport.FormData

// NewFormData creates an empty form body.
func NewFormData() *FormData { return transport.NewFormData() }

// State is the observable lifecycle of a Request.
type State struct {
	Data       any
	Err        error
	Loading    bool
	Finished   bool
	StatusCode int
	CanCancel  bool
	Cancelled  bool
}

// Outcome is the terminal result of one execution.
type Outcome struct {
	Data       any
	Err        error
	StatusCode int
	Cancelled  bool
}

// ResponseEvent is delivered to response observers after a successful
// execution.
type ResponseEvent struct {
	Data     any
	Response *transport.Response
}

// URLSource yields the URL of the next attempt.
type URLSource interface {
	Resolve() string
}

// StaticURL is a fixed URL.
type StaticURL string

// Resolve returns u.
func (u StaticURL) Resolve() string { return string(u) }

// URLFunc computes the URL on every attempt.
type URLFunc func() string

// Resolve calls f.
func (f URLFunc) Resolve() string { return f() }

// RefURL reads the URL from an observable value. Attached requests with
// Immediate and Refetch set re-execute when it changes.
type RefURL struct {
	Ref *reactive.Ref[string]
}

// FromRef wraps ref as a URL source.
func FromRef(ref *reactive.Ref[string]) RefURL { return RefURL{Ref: ref} }

// Resolve returns the current value of the ref.
func (u RefURL) Resolve() string { return u.Ref.Get() }

func cloneConfig(c Config) Config {
	out := c
	out.UpdateDataOnError = cloneFlag(c.UpdateDataOnError)
	out.Retry.Enabled = cloneFlag(c.Retry.Enabled)
	out.Reactivity = ReactivityFlags{
		Immediate:          cloneFlag(c.Reactivity.Immediate),
		Refetch:            cloneFlag(c.Reactivity.Refetch),
		RefetchOnReconnect: cloneFlag(c.Reactivity.RefetchOnReconnect),
		RefetchOnFocus:     cloneFlag(c.Reactivity.RefetchOnFocus),
		CancelOnBlur:       cloneFlag(c.Reactivity.CancelOnBlur),
	}
	out.Params = cloneMap(c.Params)
	out.Custom = cloneMap(c.Custom)
	if c.Headers != nil {
		out.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

func cloneFlag(b *bool) *bool {
	if b == nil {
		return nil
	}
	return Bool(*b)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = cloneMap(nested)
		}
		out[k] = v
	}
	return out
}

func (c Config) method() string {
	if c.Method == "" {
		return http.MethodGet
	}
	return c.Method
}

func (c Config) responseType() decode.Type {
	if c.ResponseType == "" {
		return decode.JSON
	}
	return c.ResponseType
}

// contextKey is the type for context keys to avoid collisions
type contextKey string

const attemptKey contextKey = "fetch_attempt"

// AttemptFromContext returns the 1-based attempt number of the execution
// that produced ctx. Interceptors receive such a context.
func AttemptFromContext(ctx context.Context) (int, bool) {
	n, ok := ctx.Value(attemptKey).(int)
	return n, ok
}
