package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	testCounter       = "test.counter"
	testHistogram     = "test.histogram"
	nonExistentMetric = "does.not.exist"
	attemptSpan       = "fetch GET"
)

func TestTraceProviderCapturesSpans(t *testing.T) {
	tp := NewTestTraceProvider()
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), attemptSpan)
	span.AddEvent("attempt")
	span.AddEvent("retry")
	span.End()

	spans := tp.Exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, attemptSpan, spans[0].Name)
	assert.Equal(t, []string{"attempt", "retry"}, SpanEvents(&spans[0]))
}

func TestSpanCollectorFilters(t *testing.T) {
	tp := NewTestTraceProvider()
	defer tp.Shutdown(context.Background())
	tracer := tp.Tracer("test")

	_, get := tracer.Start(context.Background(), attemptSpan)
	get.SetAttributes(attribute.String("fetch.outcome", "success"), attribute.Int("fetch.attempts", 2))
	get.End()
	_, post := tracer.Start(context.Background(), "fetch POST")
	post.SetAttributes(attribute.String("fetch.outcome", "failure"), attribute.Bool("fetch.retried", true))
	post.End()

	sc := NewSpanCollector(t, tp.Exporter)
	assert.Equal(t, 2, sc.Len())
	sc.WithName(attemptSpan).AssertCount(1)
	sc.WithAttribute("fetch.outcome", "failure").AssertCount(1)
	sc.WithAttribute("fetch.attempts", 2).AssertCount(1)
	sc.WithAttribute("fetch.retried", true).AssertCount(1)
	sc.WithAttribute("fetch.outcome", 3.5).AssertCount(0)

	first := sc.WithName(attemptSpan).First()
	AssertSpanAttribute(t, &first, "fetch.outcome", "success")
	AssertSpanAttribute(t, &first, "fetch.attempts", int64(2))
}

func TestAssertSpanError(t *testing.T) {
	tp := NewTestTraceProvider()
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), attemptSpan)
	span.RecordError(errors.New("boom"))
	span.SetStatus(codes.Error, "boom")
	span.End()

	stub := NewSpanCollector(t, tp.Exporter).First()
	AssertSpanError(t, &stub, "boom")
	AssertSpanError(t, &stub, "")
}

func TestSumInt64AddsAllDataPoints(t *testing.T) {
	mp := NewTestMeterProvider()
	defer mp.Shutdown(context.Background())

	counter, err := mp.Meter("test").Int64Counter(testCounter)
	require.NoError(t, err)
	counter.Add(context.Background(), 2, metric.WithAttributes(attribute.Int("http.response.status_code", 500)))
	counter.Add(context.Background(), 1, metric.WithAttributes(attribute.Int("http.response.status_code", 200)))

	rm := mp.Collect(t)
	assert.Equal(t, int64(3), SumInt64(rm, testCounter))
	assert.Zero(t, SumInt64(rm, nonExistentMetric))
	AssertMetricValue(t, rm, testCounter, 3)
	AssertMetricExists(t, rm, testCounter)
	assert.Nil(t, FindMetric(rm, nonExistentMetric))
}

func TestHistogramCount(t *testing.T) {
	mp := NewTestMeterProvider()
	defer mp.Shutdown(context.Background())

	hist, err := mp.Meter("test").Float64Histogram(testHistogram)
	require.NoError(t, err)
	hist.Record(context.Background(), 12.5, metric.WithAttributes(attribute.String("fetch.outcome", "success")))
	hist.Record(context.Background(), 40, metric.WithAttributes(attribute.String("fetch.outcome", "failure")))
	hist.Record(context.Background(), 3, metric.WithAttributes(attribute.String("fetch.outcome", "success")))

	rm := mp.Collect(t)
	assert.Equal(t, uint64(3), HistogramCount(rm, testHistogram))
	assert.Zero(t, HistogramCount(rm, testCounter))
	AssertMetricValue(t, rm, testHistogram, 3)
}
