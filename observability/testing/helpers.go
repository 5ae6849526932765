// Package testing provides in-memory OpenTelemetry providers and assertion
// helpers for the telemetry recorded by go-fetch executions.
//
// Usage:
//
//	mp := NewTestMeterProvider()
//	tp := NewTestTraceProvider()
//	inst, _ := observability.NewInstruments(mp, tp)
//
//	// run a request built with fetch.WithInstruments(inst)
//
//	rm := mp.Collect(t)
//	assert.Equal(t, int64(1), SumInt64(rm, observability.MetricAttempts))
//	span := NewSpanCollector(t, tp.Exporter).WithName("fetch GET").First()
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const metricNotFoundErrMsg = "metric %s not found"

// TestTraceProvider wraps the SDK TracerProvider and an in-memory exporter.
type TestTraceProvider struct {
	*sdktrace.TracerProvider
	Exporter *tracetest.InMemoryExporter
}

// NewTestTraceProvider creates a TracerProvider that exports synchronously
// into memory.
func NewTestTraceProvider() *TestTraceProvider {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	return &TestTraceProvider{
		TracerProvider: provider,
		Exporter:       exporter,
	}
}

// TestMeterProvider wraps the SDK MeterProvider and a manual reader.
type TestMeterProvider struct {
	*sdkmetric.MeterProvider
	Reader *sdkmetric.ManualReader
}

// NewTestMeterProvider creates a MeterProvider whose metrics are collected on
// demand.
func NewTestMeterProvider() *TestMeterProvider {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)

	return &TestMeterProvider{
		MeterProvider: provider,
		Reader:        reader,
	}
}

// Collect reads all metrics recorded so far.
func (tmp *TestMeterProvider) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	err := tmp.Reader.Collect(context.Background(), &rm)
	require.NoError(t, err, "failed to collect metrics")
	return rm
}

// SpanCollector provides a fluent API for filtering and asserting on captured spans.
type SpanCollector struct {
	t     *testing.T
	spans tracetest.SpanStubs
}

// NewSpanCollector creates a span collector from an in-memory exporter.
func NewSpanCollector(t *testing.T, exporter *tracetest.InMemoryExporter) *SpanCollector {
	t.Helper()
	return &SpanCollector{
		t:     t,
		spans: exporter.GetSpans(),
	}
}

// Len returns the number of collected spans.
func (sc *SpanCollector) Len() int { return len(sc.spans) }

// WithName keeps the spans called name.
func (sc *SpanCollector) WithName(name string) *SpanCollector {
	return sc.filter(func(span *tracetest.SpanStub) bool { return span.Name == name })
}

// WithAttribute keeps the spans carrying key with the given value.
func (sc *SpanCollector) WithAttribute(key string, value any) *SpanCollector {
	return sc.filter(func(span *tracetest.SpanStub) bool {
		v, ok := spanAttribute(span, key)
		return ok && attrEquals(v, value)
	})
}

func (sc *SpanCollector) filter(keep func(*tracetest.SpanStub) bool) *SpanCollector {
	sc.t.Helper()
	var kept tracetest.SpanStubs
	for i := range sc.spans {
		if keep(&sc.spans[i]) {
			kept = append(kept, sc.spans[i])
		}
	}
	return &SpanCollector{t: sc.t, spans: kept}
}

// First returns the first span in the collection.
// Fails the test if the collection is empty.
func (sc *SpanCollector) First() tracetest.SpanStub {
	sc.t.Helper()
	require.NotEmpty(sc.t, sc.spans, "no spans in collection")
	return sc.spans[0]
}

// AssertCount asserts the number of collected spans.
func (sc *SpanCollector) AssertCount(expected int) *SpanCollector {
	sc.t.Helper()
	assert.Len(sc.t, sc.spans, expected, "unexpected number of spans")
	return sc
}

func spanAttribute(span *tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

// attrEquals compares an attribute against a string, int, int64 or bool.
func attrEquals(v attribute.Value, expected any) bool {
	switch e := expected.(type) {
	case string:
		return v.Type() == attribute.STRING && v.AsString() == e
	case int:
		return v.Type() == attribute.INT64 && v.AsInt64() == int64(e)
	case int64:
		return v.Type() == attribute.INT64 && v.AsInt64() == e
	case bool:
		return v.Type() == attribute.BOOL && v.AsBool() == e
	}
	return false
}

// AssertSpanAttribute asserts that span carries key with the expected value.
func AssertSpanAttribute(t *testing.T, span *tracetest.SpanStub, key string, expected any) {
	t.Helper()
	v, ok := spanAttribute(span, key)
	if !ok {
		t.Errorf("attribute %s not found in span %q", key, span.Name)
		return
	}
	assert.True(t, attrEquals(v, expected), "attribute %s: got %s, want %v", key, v.Emit(), expected)
}

// AssertSpanError asserts that a span has an error status, and the expected
// description when one is given.
func AssertSpanError(t *testing.T, span *tracetest.SpanStub, expectedDesc string) {
	t.Helper()
	assert.Equal(t, codes.Error, span.Status.Code, "expected error status")
	if expectedDesc != "" {
		assert.Equal(t, expectedDesc, span.Status.Description, "span error description mismatch")
	}
}

// SpanEvents returns the names of the events recorded on span, in order.
func SpanEvents(span *tracetest.SpanStub) []string {
	names := make([]string, 0, len(span.Events))
	for _, e := range span.Events {
		names = append(names, e.Name)
	}
	return names
}

// FindMetric finds a metric by name. Returns nil if not found.
func FindMetric(rm metricdata.ResourceMetrics, metricName string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == metricName {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// SumInt64 adds up every data point of an int64 sum metric. A missing metric
// sums to zero.
func SumInt64(rm metricdata.ResourceMetrics, metricName string) int64 {
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0
	}
	data, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}
	return total
}

// HistogramCount adds up the observation counts of every data point of a
// float64 histogram.
func HistogramCount(rm metricdata.ResourceMetrics, metricName string) uint64 {
	m := FindMetric(rm, metricName)
	if m == nil {
		return 0
	}
	data, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		return 0
	}
	var total uint64
	for _, dp := range data.DataPoints {
		total += dp.Count
	}
	return total
}

// AssertMetricValue asserts a metric's value. Int64 sums are totalled across
// data points; for float64 histograms the observation count is asserted.
func AssertMetricValue(t *testing.T, rm metricdata.ResourceMetrics, metricName string, expectedValue int) {
	t.Helper()
	m := FindMetric(rm, metricName)
	require.NotNil(t, m, metricNotFoundErrMsg, metricName)

	switch m.Data.(type) {
	case metricdata.Sum[int64]:
		assert.Equal(t, int64(expectedValue), SumInt64(rm, metricName), "metric %s value mismatch", metricName)
	case metricdata.Histogram[float64]:
		assert.Equal(t, uint64(expectedValue), HistogramCount(rm, metricName), "metric %s value mismatch", metricName)
	default:
		t.Fatalf("unsupported metric data type: %T", m.Data)
	}
}

// AssertMetricExists asserts that a metric called metricName was recorded.
func AssertMetricExists(t *testing.T, rm metricdata.ResourceMetrics, metricName string) {
	t.Helper()
	require.NotNil(t, FindMetric(rm, metricName), metricNotFoundErrMsg, metricName)
}
