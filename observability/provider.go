package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/gaborage/go-fetch/logger"
)

// Provider manages the lifecycle of the tracing and metrics providers that
// request executions report into.
type Provider interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider

	// Instruments returns the execution instruments bound to this provider,
	// or nil when observability is disabled.
	Instruments() (*Instruments, error)

	// Shutdown flushes pending telemetry and releases the exporters.
	Shutdown(ctx context.Context) error

	// ForceFlush immediately exports any pending telemetry.
	ForceFlush(ctx context.Context) error
}

// provider holds the SDK providers of each enabled signal. A signal that is
// off keeps a nil provider and is served by the OpenTelemetry no-op one.
type provider struct {
	config         Config
	log            logger.Logger
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	mu             sync.Mutex
}

// NewProvider creates a provider from cfg. Defaults are applied to a copy of
// cfg before validation. When observability is enabled the providers are
// installed as the OpenTelemetry globals together with the W3C trace context
// propagator.
func NewProvider(cfg *Config, log logger.Logger) (Provider, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if log == nil {
		log = logger.Nop()
	}

	safeCfg := *cfg
	safeCfg.Trace.Headers = cloneHeaderMap(cfg.Trace.Headers)
	safeCfg.Metrics.Headers = cloneHeaderMap(cfg.Metrics.Headers)
	safeCfg.ApplyDefaults()
	if err := safeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	p := &provider{config: safeCfg, log: log}
	if !safeCfg.Enabled {
		log.Debug().Msg("observability disabled, executions are not recorded")
		return p, nil
	}

	if isOn(safeCfg.Trace.Enabled) {
		if *safeCfg.Trace.SampleRate == 0 {
			log.Warn().Msg("trace sample rate is 0.0, no spans will be recorded")
		}
		if err := p.initTraceProvider(); err != nil {
			return nil, fmt.Errorf("failed to initialize trace provider: %w", err)
		}
		otel.SetTracerProvider(p.tracerProvider)
	}

	if isOn(safeCfg.Metrics.Enabled) {
		if err := p.initMeterProvider(); err != nil {
			return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
		}
		otel.SetMeterProvider(p.meterProvider)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("service", safeCfg.Service.Name).
		Str("trace_endpoint", safeCfg.Trace.Endpoint).
		Str("metrics_endpoint", safeCfg.Metrics.Endpoint).
		Bool("tracing", p.tracerProvider != nil).
		Bool("metrics", p.meterProvider != nil).
		Msg("observability provider initialized")
	return p, nil
}

// MustNewProvider is NewProvider that panics on error.
func MustNewProvider(cfg *Config, log logger.Logger) Provider {
	p, err := NewProvider(cfg, log)
	if err != nil {
		panic(fmt.Errorf("failed to create observability provider: %w", err))
	}
	return p
}

func isOn(b *bool) bool { return b != nil && *b }

// createResource merges the SDK default resource with the service identity.
func (p *provider) createResource() (*resource.Resource, error) {
	custom, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(p.config.Service.Name),
			semconv.ServiceVersion(p.config.Service.Version),
			semconv.DeploymentEnvironmentName(p.config.Environment),
		),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), custom)
}

func (p *provider) TracerProvider() trace.TracerProvider {
	if p.tracerProvider == nil {
		return noop.NewTracerProvider()
	}
	return p.tracerProvider
}

func (p *provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.meterProvider
}

func (p *provider) Instruments() (*Instruments, error) {
	if !p.config.Enabled {
		return nil, nil
	}
	return NewInstruments(p.MeterProvider(), p.TracerProvider())
}

func (p *provider) Shutdown(ctx context.Context) error {
	return p.each(ctx, "shutdown",
		(*sdktrace.TracerProvider).Shutdown,
		(*sdkmetric.MeterProvider).Shutdown,
	)
}

func (p *provider) ForceFlush(ctx context.Context) error {
	return p.each(ctx, "flush",
		(*sdktrace.TracerProvider).ForceFlush,
		(*sdkmetric.MeterProvider).ForceFlush,
	)
}

// each runs onTraces and onMetrics against the providers that exist and
// joins their errors.
func (p *provider) each(
	ctx context.Context,
	op string,
	onTraces func(*sdktrace.TracerProvider, context.Context) error,
	onMetrics func(*sdkmetric.MeterProvider, context.Context) error,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := onTraces(p.tracerProvider, ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider %s: %w", op, err))
		}
	}
	if p.meterProvider != nil {
		if err := onMetrics(p.meterProvider, ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider %s: %w", op, err))
		}
	}
	return errors.Join(errs...)
}
