// Package trace carries correlation identifiers through contexts and stamps
// them onto outgoing requests.
package trace

import (
	"context"
	"crypto/rand"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Correlation headers.
const (
	HeaderXRequestID  = "X-Request-ID"
	HeaderTraceParent = "traceparent"
	HeaderTraceState  = "tracestate"
)

// Correlation identifies the logical operation a request belongs to.
// Parent and State are W3C trace context values.
type Correlation struct {
	RequestID string
	Parent    string
	State     string
}

type correlationKey struct{}

// WithCorrelation stores c in ctx, replacing any previous value.
func WithCorrelation(ctx context.Context, c Correlation) context.Context {
	return context.WithValue(ctx, correlationKey{}, c)
}

// FromContext returns the correlation stored in ctx, or the zero value.
func FromContext(ctx context.Context) Correlation {
	c, _ := ctx.Value(correlationKey{}).(Correlation)
	return c
}

func WithTraceID(ctx context.Context, id string) context.Context {
	c := FromContext(ctx)
	c.RequestID = id
	return WithCorrelation(ctx, c)
}

func WithTraceParent(ctx context.Context, parent string) context.Context {
	c := FromContext(ctx)
	c.Parent = parent
	return WithCorrelation(ctx, c)
}

func WithTraceState(ctx context.Context, state string) context.Context {
	c := FromContext(ctx)
	c.State = state
	return WithCorrelation(ctx, c)
}

func IDFromContext(ctx context.Context) (string, bool) {
	id := FromContext(ctx).RequestID
	return id, id != ""
}

func ParentFromContext(ctx context.Context) (string, bool) {
	p := FromContext(ctx).Parent
	return p, p != ""
}

func StateFromContext(ctx context.Context) (string, bool) {
	s := FromContext(ctx).State
	return s, s != ""
}

// EnsureTraceID returns the request ID stored in ctx or a new UUID.
func EnsureTraceID(ctx context.Context) string {
	if id, ok := IDFromContext(ctx); ok {
		return id
	}
	return uuid.NewString()
}

// GenerateTraceParent returns a sampled traceparent for a new root span.
func GenerateTraceParent() string {
	var tid oteltrace.TraceID
	var sid oteltrace.SpanID
	for !tid.IsValid() {
		_, _ = rand.Read(tid[:])
	}
	for !sid.IsValid() {
		_, _ = rand.Read(sid[:])
	}
	sc := oteltrace.NewSpanContext(oteltrace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: oteltrace.FlagsSampled,
	})

	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(oteltrace.ContextWithSpanContext(context.Background(), sc), carrier)
	return carrier.Get(HeaderTraceParent)
}
