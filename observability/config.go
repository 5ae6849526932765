package observability

import (
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout is a special endpoint value that outputs to stdout (for local development).
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// CompressionGzip specifies gzip compression for OTLP export.
	CompressionGzip = "gzip"

	// CompressionNone specifies no compression for OTLP export.
	CompressionNone = "none"

	// EnvironmentDevelopment is the default environment name.
	EnvironmentDevelopment = "development"
)

// BoolPtr returns a pointer to the provided bool value.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to the provided float64 value.
func Float64Ptr(v float64) *float64 {
	return &v
}

func cloneHeaderMap(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	clone := make(map[string]string, len(headers))
	maps.Copy(clone, headers)
	return clone
}

// Config defines the telemetry export of a process using go-fetch.
type Config struct {
	// Enabled controls whether telemetry is exported at all.
	// When false, NewProvider returns no-op providers.
	Enabled bool `koanf:"enabled"`

	Service ServiceConfig `koanf:"service"`

	// Environment indicates the deployment environment (e.g., production, staging, development).
	Environment string `koanf:"environment"`

	Trace   TraceConfig   `koanf:"trace"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ServiceConfig identifies the service in traces and metrics.
type ServiceConfig struct {
	// Name is required when observability is enabled.
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// TraceConfig defines span export.
type TraceConfig struct {
	// Enabled: nil = apply default (true when observability is enabled), false = explicitly disabled.
	Enabled *bool `koanf:"enabled"`

	// Endpoint is "stdout" or an OTLP endpoint ("http://localhost:4318" for
	// HTTP, "localhost:4317" for gRPC).
	Endpoint string `koanf:"endpoint"`

	// Protocol is "http" or "grpc". Only used for OTLP endpoints.
	Protocol string `koanf:"protocol"`

	// Insecure disables TLS for OTLP endpoints.
	Insecure bool `koanf:"insecure"`

	// Headers are sent with every OTLP export, e.g. API keys.
	Headers map[string]string `koanf:"headers"`

	// Compression is "gzip" (default) or "none".
	Compression string `koanf:"compression"`

	// SampleRate is the fraction of executions traced, 0.0 to 1.0.
	// nil = apply default (1.0), explicit value = use that value (including 0.0).
	SampleRate *float64 `koanf:"samplerate"`

	BatchTimeout  time.Duration `koanf:"batchtimeout"`
	ExportTimeout time.Duration `koanf:"exporttimeout"`
	MaxQueueSize  int           `koanf:"maxqueuesize"`
	MaxBatchSize  int           `koanf:"maxbatchsize"`
}

// MetricsConfig defines metric export.
type MetricsConfig struct {
	// Enabled: nil = apply default (true when observability is enabled), false = explicitly disabled.
	Enabled *bool `koanf:"enabled"`

	Endpoint string `koanf:"endpoint"`

	// Protocol falls back to the trace protocol when empty.
	Protocol string `koanf:"protocol"`

	// Insecure falls back to the trace setting when unset.
	Insecure *bool `koanf:"insecure"`

	// Headers fall back to the trace headers when empty.
	Headers map[string]string `koanf:"headers"`

	Compression string `koanf:"compression"`

	// Interval is how often metrics are exported.
	Interval      time.Duration `koanf:"interval"`
	ExportTimeout time.Duration `koanf:"exporttimeout"`
}

// ApplyDefaults sets default values for any config fields that are not specified.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}
	c.applyTraceDefaults()
	c.applyMetricsDefaults()
}

// development reports whether short batching and export timeouts apply.
func (c *Config) development(endpoint string) bool {
	return c.Environment == EnvironmentDevelopment || endpoint == EndpointStdout
}

func (c *Config) applyTraceDefaults() {
	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	if c.Enabled && c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	if c.Trace.Endpoint == EndpointStdout {
		c.Trace.Insecure = true
	}
	if c.Trace.Compression == "" {
		c.Trace.Compression = CompressionGzip
	}
	if c.Trace.SampleRate == nil {
		c.Trace.SampleRate = Float64Ptr(1.0)
	}

	dev := c.development(c.Trace.Endpoint)
	if c.Trace.BatchTimeout == 0 {
		c.Trace.BatchTimeout = 5 * time.Second
		if dev {
			c.Trace.BatchTimeout = 500 * time.Millisecond
		}
	}
	if c.Trace.ExportTimeout == 0 {
		c.Trace.ExportTimeout = 60 * time.Second
		if dev {
			c.Trace.ExportTimeout = 10 * time.Second
		}
	}
	if c.Trace.MaxQueueSize == 0 {
		c.Trace.MaxQueueSize = 2048
	}
	if c.Trace.MaxBatchSize == 0 {
		c.Trace.MaxBatchSize = 512
	}
}

func (c *Config) applyMetricsDefaults() {
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = EndpointStdout
	}
	if c.Enabled && c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Protocol == "" {
		c.Metrics.Protocol = c.Trace.Protocol
	}
	if c.Metrics.Insecure == nil {
		c.Metrics.Insecure = BoolPtr(c.Trace.Insecure || c.Metrics.Endpoint == EndpointStdout)
	}
	if len(c.Metrics.Headers) == 0 {
		c.Metrics.Headers = cloneHeaderMap(c.Trace.Headers)
	}
	if c.Metrics.Compression == "" {
		c.Metrics.Compression = CompressionGzip
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = 10 * time.Second
	}
	if c.Metrics.ExportTimeout == 0 {
		c.Metrics.ExportTimeout = 60 * time.Second
		if c.development(c.Metrics.Endpoint) {
			c.Metrics.ExportTimeout = 10 * time.Second
		}
	}
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}

	if c.Trace.SampleRate != nil {
		if rate := *c.Trace.SampleRate; rate < 0.0 || rate > 1.0 {
			return ErrInvalidSampleRate
		}
	}
	if err := validateExport(SignalTraces, c.Trace.Endpoint, c.Trace.Protocol, c.Trace.Compression); err != nil {
		return err
	}

	if c.Metrics.Enabled == nil || !*c.Metrics.Enabled {
		return nil
	}
	protocol := c.Metrics.Protocol
	if protocol == "" {
		protocol = c.Trace.Protocol
	}
	return validateExport(SignalMetrics, c.Metrics.Endpoint, protocol, c.Metrics.Compression)
}

// validateExport checks compression and that the endpoint format matches
// the protocol: gRPC endpoints are "host:port", HTTP endpoints carry a scheme.
func validateExport(signal, endpoint, protocol, compression string) error {
	fail := func(err error) error {
		return &ExportError{Signal: signal, Endpoint: endpoint, Err: err}
	}
	if compression != "" && compression != CompressionGzip && compression != CompressionNone {
		return fail(ErrInvalidCompression)
	}
	if endpoint == EndpointStdout || endpoint == "" {
		return nil
	}
	if protocol == "" {
		protocol = ProtocolHTTP
	}

	hasScheme := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
	switch protocol {
	case ProtocolGRPC:
		if hasScheme {
			return fail(ErrInvalidEndpointFormat)
		}
	case ProtocolHTTP:
		if !hasScheme {
			return fail(ErrInvalidEndpointFormat)
		}
	default:
		return fail(ErrInvalidProtocol)
	}
	return nil
}
