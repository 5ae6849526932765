package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testServiceName      = "orders-client"
	testOTLPHTTPEndpoint = "http://localhost:4318"
	testOTLPGRPCEndpoint = "localhost:4317"
)

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Enabled: true, Service: ServiceConfig{Name: testServiceName}}
	cfg.ApplyDefaults()

	assert.Equal(t, "unknown", cfg.Service.Version)
	assert.Equal(t, EnvironmentDevelopment, cfg.Environment)

	require.NotNil(t, cfg.Trace.Enabled)
	assert.True(t, *cfg.Trace.Enabled)
	assert.Equal(t, EndpointStdout, cfg.Trace.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Trace.Protocol)
	assert.True(t, cfg.Trace.Insecure)
	assert.Equal(t, CompressionGzip, cfg.Trace.Compression)
	require.NotNil(t, cfg.Trace.SampleRate)
	assert.InDelta(t, 1.0, *cfg.Trace.SampleRate, 0.0001)
	assert.Equal(t, 500*time.Millisecond, cfg.Trace.BatchTimeout)
	assert.Equal(t, 10*time.Second, cfg.Trace.ExportTimeout)
	assert.Equal(t, 2048, cfg.Trace.MaxQueueSize)
	assert.Equal(t, 512, cfg.Trace.MaxBatchSize)

	require.NotNil(t, cfg.Metrics.Enabled)
	assert.True(t, *cfg.Metrics.Enabled)
	assert.Equal(t, ProtocolHTTP, cfg.Metrics.Protocol)
	assert.Equal(t, 10*time.Second, cfg.Metrics.Interval)
}

func TestApplyDefaultsProduction(t *testing.T) {
	cfg := Config{
		Enabled:     true,
		Environment: "production",
		Trace: TraceConfig{
			Endpoint:   testOTLPGRPCEndpoint,
			Protocol:   ProtocolGRPC,
			Headers:    map[string]string{"api-key": "secret"},
			SampleRate: Float64Ptr(0),
		},
		Metrics: MetricsConfig{Endpoint: testOTLPGRPCEndpoint, Enabled: BoolPtr(false)},
	}
	cfg.ApplyDefaults()

	assert.False(t, cfg.Trace.Insecure)
	assert.Zero(t, *cfg.Trace.SampleRate, "an explicit zero rate is kept")
	assert.Equal(t, 5*time.Second, cfg.Trace.BatchTimeout)
	assert.Equal(t, 60*time.Second, cfg.Trace.ExportTimeout)

	assert.False(t, *cfg.Metrics.Enabled, "an explicit false is kept")
	assert.Equal(t, ProtocolGRPC, cfg.Metrics.Protocol, "metrics inherit the trace protocol")
	assert.Equal(t, map[string]string{"api-key": "secret"}, cfg.Metrics.Headers)
	assert.False(t, *cfg.Metrics.Insecure)

	cfg.Trace.Headers["api-key"] = "changed"
	assert.Equal(t, "secret", cfg.Metrics.Headers["api-key"], "inherited headers are copied")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{Enabled: true, Service: ServiceConfig{Name: testServiceName}}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"valid defaults", func(*Config) {}, nil},
		{"disabled skips checks", func(c *Config) { c.Enabled = false; c.Service.Name = "" }, nil},
		{"missing service name", func(c *Config) { c.Service.Name = "" }, ErrMissingServiceName},
		{"sample rate too high", func(c *Config) { c.Trace.SampleRate = Float64Ptr(1.5) }, ErrInvalidSampleRate},
		{"negative sample rate", func(c *Config) { c.Trace.SampleRate = Float64Ptr(-0.1) }, ErrInvalidSampleRate},
		{"bad compression", func(c *Config) { c.Trace.Compression = "brotli" }, ErrInvalidCompression},
		{"unknown protocol", func(c *Config) {
			c.Trace.Endpoint = testOTLPHTTPEndpoint
			c.Trace.Protocol = "kafka"
		}, ErrInvalidProtocol},
		{"grpc endpoint with scheme", func(c *Config) {
			c.Trace.Endpoint = "http://localhost:4317"
			c.Trace.Protocol = ProtocolGRPC
		}, ErrInvalidEndpointFormat},
		{"http endpoint without scheme", func(c *Config) {
			c.Trace.Endpoint = "localhost:4318"
			c.Trace.Protocol = ProtocolHTTP
		}, ErrInvalidEndpointFormat},
		{"metrics endpoint checked when enabled", func(c *Config) {
			c.Metrics.Enabled = BoolPtr(true)
			c.Metrics.Endpoint = "localhost:4318"
			c.Metrics.Protocol = ProtocolHTTP
		}, ErrInvalidEndpointFormat},
		{"metrics endpoint ignored when disabled", func(c *Config) {
			c.Metrics.Enabled = BoolPtr(false)
			c.Metrics.Endpoint = "localhost:4318"
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNilConfig)
}

func TestValidateNamesTheSignal(t *testing.T) {
	cfg := Config{Enabled: true, Service: ServiceConfig{Name: testServiceName}}
	cfg.Metrics.Enabled = BoolPtr(true)
	cfg.Metrics.Endpoint = "localhost:4318"
	cfg.Metrics.Protocol = ProtocolHTTP

	var exportErr *ExportError
	require.ErrorAs(t, cfg.Validate(), &exportErr)
	assert.Equal(t, SignalMetrics, exportErr.Signal)
	assert.Equal(t, "localhost:4318", exportErr.Endpoint)
	assert.Contains(t, exportErr.Error(), `metrics exporter "localhost:4318"`)
}
