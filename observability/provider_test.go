package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/gaborage/go-fetch/logger"
)

// shutdownQuickly releases p without waiting on unreachable collectors.
func shutdownQuickly(p Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func TestNewProviderDisabled(t *testing.T) {
	prov, err := NewProvider(&Config{Enabled: false}, nil)
	require.NoError(t, err)

	_, ok := prov.TracerProvider().(noop.TracerProvider)
	assert.True(t, ok, "expected the no-op tracer provider when disabled")
	assert.NotNil(t, prov.MeterProvider().Meter("test-meter"))

	inst, err := prov.Instruments()
	assert.NoError(t, err)
	assert.Nil(t, inst)

	assert.NoError(t, prov.ForceFlush(context.Background()))
	assert.NoError(t, prov.Shutdown(context.Background()))
	assert.NoError(t, prov.Shutdown(context.Background()))
}

func TestNewProviderInvalidConfig(t *testing.T) {
	prov, err := NewProvider(&Config{Enabled: true}, logger.Nop())
	assert.ErrorIs(t, err, ErrMissingServiceName)
	assert.Nil(t, prov)

	prov, err = NewProvider(nil, logger.Nop())
	assert.ErrorIs(t, err, ErrNilConfig)
	assert.Nil(t, prov)

	assert.Panics(t, func() { MustNewProvider(&Config{Enabled: true}, nil) })
}

func TestNewProviderDoesNotMutateConfig(t *testing.T) {
	cfg := &Config{
		Enabled: true,
		Service: ServiceConfig{Name: testServiceName},
		Metrics: MetricsConfig{Enabled: BoolPtr(false)},
	}
	prov, err := NewProvider(cfg, logger.Nop())
	require.NoError(t, err)
	defer shutdownQuickly(prov)

	assert.Empty(t, cfg.Environment)
	assert.Nil(t, cfg.Trace.Enabled)
	assert.Nil(t, cfg.Trace.SampleRate)
}

func TestNewProviderStdout(t *testing.T) {
	prov, err := NewProvider(&Config{
		Enabled: true,
		Service: ServiceConfig{Name: testServiceName, Version: "1.0.0"},
	}, logger.Nop())
	require.NoError(t, err)
	defer shutdownQuickly(prov)

	_, ok := prov.TracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok, "expected an SDK tracer provider")
	assert.Same(t, prov.TracerProvider(), otel.GetTracerProvider())
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")

	inst, err := prov.Instruments()
	require.NoError(t, err)
	require.NotNil(t, inst)

	ctx, span := inst.StartExecution(context.Background(), "GET")
	assert.True(t, span.SpanContext().IsValid())
	inst.EndExecution(ctx, span, "GET", OutcomeSuccess, nil, time.Millisecond)

	assert.NoError(t, prov.ForceFlush(context.Background()))
}

func TestNewProviderTracingOnly(t *testing.T) {
	prov, err := NewProvider(&Config{
		Enabled: true,
		Service: ServiceConfig{Name: testServiceName},
		Metrics: MetricsConfig{Enabled: BoolPtr(false)},
	}, logger.Nop())
	require.NoError(t, err)
	defer shutdownQuickly(prov)

	p, ok := prov.(*provider)
	require.True(t, ok)
	assert.NotNil(t, p.tracerProvider)
	assert.Nil(t, p.meterProvider)
	assert.NotNil(t, prov.MeterProvider().Meter("noop"))
}

func TestNewProviderOTLPExporters(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		protocol string
	}{
		{"http", testOTLPHTTPEndpoint, ProtocolHTTP},
		{"grpc", testOTLPGRPCEndpoint, ProtocolGRPC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov, err := NewProvider(&Config{
				Enabled:     true,
				Environment: "production",
				Service:     ServiceConfig{Name: testServiceName},
				Trace: TraceConfig{
					Endpoint: tt.endpoint,
					Protocol: tt.protocol,
					Insecure: true,
					Headers:  map[string]string{"api-key": "secret"},
				},
				Metrics: MetricsConfig{Endpoint: tt.endpoint},
			}, logger.Nop())
			require.NoError(t, err)
			defer shutdownQuickly(prov)

			p := prov.(*provider)
			assert.NotNil(t, p.tracerProvider)
			assert.NotNil(t, p.meterProvider)
		})
	}
}

func TestExportersRejectUnknownProtocol(t *testing.T) {
	_, err := newTraceExporter(context.Background(), TraceConfig{Endpoint: testOTLPHTTPEndpoint, Protocol: "udp"})
	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, SignalTraces, exportErr.Signal)
	assert.ErrorIs(t, err, ErrInvalidProtocol)

	_, err = newMetricExporter(context.Background(), MetricsConfig{Endpoint: testOTLPHTTPEndpoint, Protocol: "udp"})
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, SignalMetrics, exportErr.Signal)
}
