package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/gaborage/go-fetch/transport"
)

// Interceptor stages, reported by InterceptorError.Stage.
const (
	StageBeforeFetch  = "before_fetch"
	StageAfterFetch   = "after_fetch"
	StageOnFetchError = "on_fetch_error"
)

// Interceptors are the three per-request hooks. Any of them may be nil.
type Interceptors struct {
	BeforeFetch  BeforeFetchFunc
	AfterFetch   AfterFetchFunc
	OnFetchError OnFetchErrorFunc
}

// BeforeFetchContext is handed to the pre-request interceptor. Config is the
// outgoing configuration of this attempt and may be modified in place.
type BeforeFetchContext struct {
	URL    string
	Config *Config
	// Cancel aborts the attempt; the execution ends as cancelled.
	Cancel func()
}

// BeforeFetchResult carries replacements for the outgoing request. Each
// non-empty field overrides independently; Headers are merged key by key.
type BeforeFetchResult struct {
	URL     string
	Method  string
	Body    any
	Params  map[string]any
	Headers map[string]string
}

// BeforeFetchFunc runs before every attempt. A nil result leaves the request
// unchanged; an error fails the attempt.
type BeforeFetchFunc func(ctx context.Context, c *BeforeFetchContext) (*BeforeFetchResult, error)

// AfterFetchContext is handed to the post-response interceptor.
type AfterFetchContext struct {
	URL      string
	Data     any
	Response *transport.Response
	Config   *Config
}

// AfterFetchFunc may replace the decoded payload. Returning nil data keeps
// the payload unchanged; returning an error, or an error value as data, turns
// the response into a failure.
type AfterFetchFunc func(ctx context.Context, c *AfterFetchContext) (any, error)

// ErrorContext is handed to the error interceptor.
type ErrorContext struct {
	URL string
	Err error
	// Data is the decoded body of an unsuccessful response, if any.
	Data     any
	Response *transport.Response
	Config   *Config
}

// ErrorResult lets the error interceptor replace the error or supply a
// fallback payload.
type ErrorResult struct {
	Err  error
	Data any
}

// OnFetchErrorFunc runs once per failed execution, after retries are
// exhausted. A nil result leaves the error unchanged.
type OnFetchErrorFunc func(ctx context.Context, c *ErrorContext) *ErrorResult

// ChainBefore runs the given pre-request interceptors in order, feeding each
// the request as modified by the previous ones. The first error stops the
// chain.
func ChainBefore(fns ...BeforeFetchFunc) BeforeFetchFunc {
	return func(ctx context.Context, c *BeforeFetchContext) (*BeforeFetchResult, error) {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			res, err := fn(ctx, c)
			if err != nil {
				return nil, err
			}
			if res != nil {
				applyBeforeResult(c, res)
			}
		}
		return nil, nil
	}
}

// applyBeforeResult merges res into the attempt's outgoing URL and config.
func applyBeforeResult(c *BeforeFetchContext, res *BeforeFetchResult) {
	if res.URL != "" {
		c.URL = res.URL
	}
	if res.Method != "" {
		c.Config.Method = res.Method
	}
	if res.Body != nil {
		c.Config.Body = res.Body
	}
	if res.Params != nil {
		c.Config.Params = res.Params
	}
	if len(res.Headers) > 0 {
		if c.Config.Headers == nil {
			c.Config.Headers = make(map[string]string, len(res.Headers))
		}
		for k, v := range res.Headers {
			c.Config.Headers[k] = v
		}
	}
}

func runBeforeFetch(ctx context.Context, fn BeforeFetchFunc, c *BeforeFetchContext) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = transport.NewInterceptorError("pre-request interceptor panicked", StageBeforeFetch, fmt.Errorf("panic: %v", r))
		}
	}()

	res, err := fn(ctx, c)
	if err != nil {
		return transport.NewInterceptorError("pre-request interceptor failed", StageBeforeFetch, err)
	}
	if res != nil {
		applyBeforeResult(c, res)
	}
	return nil
}

func runAfterFetch(ctx context.Context, fn AfterFetchFunc, c *AfterFetchContext) (data any, err error) {
	if fn == nil {
		return c.Data, nil
	}
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = transport.NewInterceptorError("post-response interceptor panicked", StageAfterFetch, fmt.Errorf("panic: %v", r))
		}
	}()

	out, err := fn(ctx, c)
	if err != nil {
		return nil, transport.NewInterceptorError("post-response interceptor failed", StageAfterFetch, err)
	}
	if asErr, ok := out.(error); ok {
		return nil, transport.NewInterceptorError("post-response interceptor rejected the response", StageAfterFetch, asErr)
	}
	if out == nil {
		return c.Data, nil
	}
	return out, nil
}

// runOnFetchError returns nil when the interceptor is absent, declines, or
// panics.
func runOnFetchError(ctx context.Context, fn OnFetchErrorFunc, c *ErrorContext) (res *ErrorResult, panicErr error) {
	if fn == nil {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			res = nil
			panicErr = transport.NewInterceptorError("error interceptor panicked", StageOnFetchError, fmt.Errorf("panic: %v", r))
		}
	}()
	return fn(ctx, c), nil
}

// InterceptorStage returns the stage of an interceptor failure in err's
// chain.
func InterceptorStage(err error) (string, bool) {
	var staged interface{ Stage() string }
	if errors.As(err, &staged) && transport.IsErrorType(err, transport.InterceptorError) {
		return staged.Stage(), true
	}
	return "", false
}
