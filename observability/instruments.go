// Package observability records request execution telemetry with OpenTelemetry
// and bootstraps the trace and metric exporters it reports into.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the meter and tracer name used by the engine.
const InstrumentationName = "github.com/gaborage/go-fetch"

// Metric names recorded by Instruments.
const (
	MetricAttempts      = "fetch.attempts"
	MetricRetries       = "fetch.retries"
	MetricCancellations = "fetch.cancellations"
	MetricFailures      = "fetch.failures"
	MetricDuration      = "fetch.duration"
	MetricInFlight      = "fetch.inflight"
)

// Outcome labels used on the duration histogram and the execution span.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)

// Instruments records execution telemetry: one span per execution plus
// attempt, retry, cancellation and failure counters, an in-flight gauge and a
// duration histogram.
// A nil *Instruments records nothing.
type Instruments struct {
	tracer        trace.Tracer
	attempts      metric.Int64Counter
	retries       metric.Int64Counter
	cancellations metric.Int64Counter
	failures      metric.Int64Counter
	duration      metric.Float64Histogram
	inflight      metric.Int64UpDownCounter
}

// NewInstruments creates instruments from the given providers.
func NewInstruments(mp metric.MeterProvider, tp trace.TracerProvider) (*Instruments, error) {
	meter := mp.Meter(InstrumentationName)

	counters := make([]metric.Int64Counter, 4)
	for i, c := range []struct{ name, desc string }{
		{MetricAttempts, "Transport calls made"},
		{MetricRetries, "Retries scheduled after a retryable failure"},
		{MetricCancellations, "Executions ended by cancellation"},
		{MetricFailures, "Executions ended by a terminal error"},
	} {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		counters[i] = counter
	}

	duration, err := meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Execution duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(DurationBuckets...),
	)
	if err != nil {
		return nil, err
	}
	inflight, err := meter.Int64UpDownCounter(MetricInFlight, metric.WithDescription("Executions currently running"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		tracer:        tp.Tracer(InstrumentationName),
		attempts:      counters[0],
		retries:       counters[1],
		cancellations: counters[2],
		failures:      counters[3],
		duration:      duration,
		inflight:      inflight,
	}, nil
}

// GlobalInstruments creates instruments from the global OpenTelemetry
// providers. It returns nil if the instruments cannot be created.
func GlobalInstruments() *Instruments {
	inst, err := NewInstruments(otel.GetMeterProvider(), otel.GetTracerProvider())
	if err != nil {
		return nil
	}
	return inst
}

// StartExecution opens the span of one execution.
func (i *Instruments) StartExecution(ctx context.Context, method string) (context.Context, trace.Span) {
	if i == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	i.inflight.Add(ctx, 1, metric.WithAttributes(attribute.String("http.request.method", method)))
	return i.tracer.Start(ctx, "fetch "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.request.method", method)),
	)
}

// RecordAttempt counts one transport call. status is zero when no response
// was received.
func (i *Instruments) RecordAttempt(ctx context.Context, method, url string, attempt, status int) {
	if i == nil {
		return
	}
	i.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.Int("http.response.status_code", status),
	))
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("url.full", url))
	span.AddEvent("attempt", trace.WithAttributes(
		attribute.Int("fetch.attempt", attempt),
		attribute.Int("http.response.status_code", status),
	))
}

// RecordRetry counts one scheduled retry.
func (i *Instruments) RecordRetry(ctx context.Context, method, kind string, delay time.Duration) {
	if i == nil {
		return
	}
	i.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("fetch.error.kind", kind),
	))
	trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
		attribute.String("fetch.error.kind", kind),
		attribute.Int64("fetch.retry.delay_ms", delay.Milliseconds()),
	))
}

// EndExecution records the terminal outcome and closes span.
func (i *Instruments) EndExecution(ctx context.Context, span trace.Span, method, outcome string, err error, elapsed time.Duration) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("http.request.method", method))
	i.inflight.Add(ctx, -1, attrs)
	switch outcome {
	case OutcomeCancelled:
		i.cancellations.Add(ctx, 1, attrs)
	case OutcomeFailure:
		i.failures.Add(ctx, 1, attrs)
	}
	i.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("fetch.outcome", outcome),
	))

	span.SetAttributes(attribute.String("fetch.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if outcome == OutcomeSuccess {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
