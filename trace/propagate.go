package trace

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/propagation"

	"github.com/gaborage/go-fetch/fetch"
)

// Headers returns the correlation headers for a request sent under ctx.
// The traceparent comes from the active span when there is one, then from
// a value stored with WithTraceParent, and is generated otherwise.
func Headers(ctx context.Context) map[string]string {
	headers := map[string]string{HeaderXRequestID: EnsureTraceID(ctx)}

	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	if parent := carrier.Get(HeaderTraceParent); parent != "" {
		headers[HeaderTraceParent] = parent
		if state := carrier.Get(HeaderTraceState); state != "" {
			headers[HeaderTraceState] = state
		}
		return headers
	}

	if parent, ok := ParentFromContext(ctx); ok {
		headers[HeaderTraceParent] = parent
		if state, ok := StateFromContext(ctx); ok {
			headers[HeaderTraceState] = state
		}
		return headers
	}

	headers[HeaderTraceParent] = GenerateTraceParent()
	return headers
}

// BeforeFetch returns a pre-request interceptor that adds the correlation
// headers to every attempt. Headers the request already sets are kept.
func BeforeFetch() fetch.BeforeFetchFunc {
	return func(ctx context.Context, c *fetch.BeforeFetchContext) (*fetch.BeforeFetchResult, error) {
		headers := Headers(ctx)
		for name := range headers {
			if hasHeader(c.Config.Headers, name) {
				delete(headers, name)
			}
		}
		if len(headers) == 0 {
			return nil, nil
		}
		return &fetch.BeforeFetchResult{Headers: headers}, nil
	}
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
