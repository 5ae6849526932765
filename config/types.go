package config

import (
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/gaborage/go-fetch/observability"
)

// Config is the process-level configuration of a go-fetch client. Every key
// is lowercase with "." as the section delimiter, so FETCH_CLIENT_RETRY_COUNT
// maps to client.retry.count. The embedded koanf instance gives access to keys
// outside the struct, including the custom namespace.
type Config struct {
	App           AppConfig            `koanf:"app" json:"app" yaml:"app"`
	Log           LogConfig            `koanf:"log" json:"log" yaml:"log"`
	Client        ClientConfig         `koanf:"client" json:"client" yaml:"client"`
	Transport     TransportConfig      `koanf:"transport" json:"transport" yaml:"transport"`
	Observability observability.Config `koanf:"observability" json:"observability" yaml:"observability"`

	// k holds the underlying koanf instance for keys outside the struct
	k *koanf.Koanf `json:"-" yaml:"-"`
}

// AppConfig identifies the process.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version" validate:"required"`
	Env     string `koanf:"env" json:"env" yaml:"env" validate:"oneof=development staging production"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// ClientConfig holds the request defaults installed with fetch.SetDefaults.
type ClientConfig struct {
	BaseURL      string            `koanf:"baseurl" json:"baseurl" yaml:"baseurl" validate:"omitempty,url"`
	Method       string            `koanf:"method" json:"method" yaml:"method" validate:"omitempty,httpmethod"`
	ResponseType string            `koanf:"responsetype" json:"responsetype" yaml:"responsetype" validate:"omitempty,responsetype"`
	Timeout      time.Duration     `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gte=0"`
	Headers      map[string]string `koanf:"headers" json:"headers" yaml:"headers"`
	// UpdateDataOnError lets OnFetchError fallbacks replace current data.
	UpdateDataOnError bool `koanf:"updatedataonerror" json:"updatedataonerror" yaml:"updatedataonerror"`
	// Correlation stamps X-Request-ID and traceparent headers on every attempt.
	Correlation bool             `koanf:"correlation" json:"correlation" yaml:"correlation"`
	Retry       RetryConfig      `koanf:"retry" json:"retry" yaml:"retry"`
	Reactivity  ReactivityConfig `koanf:"reactivity" json:"reactivity" yaml:"reactivity"`
}

// RetryConfig controls re-attempts of failed requests.
type RetryConfig struct {
	Enabled bool `koanf:"enabled" json:"enabled" yaml:"enabled"`
	// Count is the maximum number of transport calls per execution.
	Count int           `koanf:"count" json:"count" yaml:"count" validate:"gte=0"`
	Delay time.Duration `koanf:"delay" json:"delay" yaml:"delay" validate:"gte=0"`
	// Backoff is fixed, exponential or jittered.
	Backoff  string        `koanf:"backoff" json:"backoff" yaml:"backoff" validate:"oneof=fixed exponential jittered"`
	MaxDelay time.Duration `koanf:"maxdelay" json:"maxdelay" yaml:"maxdelay" validate:"gte=0"`
}

// ReactivityConfig mirrors fetch.ReactivityFlags.
type ReactivityConfig struct {
	Immediate          bool `koanf:"immediate" json:"immediate" yaml:"immediate"`
	Refetch            bool `koanf:"refetch" json:"refetch" yaml:"refetch"`
	RefetchOnReconnect bool `koanf:"refetchonreconnect" json:"refetchonreconnect" yaml:"refetchonreconnect"`
	RefetchOnFocus     bool `koanf:"refetchonfocus" json:"refetchonfocus" yaml:"refetchonfocus"`
	CancelOnBlur       bool `koanf:"cancelonblur" json:"cancelonblur" yaml:"cancelonblur"`
}

// TransportConfig selects and tunes the transport.
type TransportConfig struct {
	// Kind is native (net/http) or resty.
	Kind      string `koanf:"kind" json:"kind" yaml:"kind" validate:"oneof=native resty"`
	UserAgent string `koanf:"useragent" json:"useragent" yaml:"useragent"`
	// Compression negotiates gzip/zstd bodies. Native only.
	Compression bool `koanf:"compression" json:"compression" yaml:"compression"`
	// Tracing wraps the native round tripper with otelhttp.
	Tracing bool        `koanf:"tracing" json:"tracing" yaml:"tracing"`
	Rate    RateConfig  `koanf:"rate" json:"rate" yaml:"rate"`
	Probe   ProbeConfig `koanf:"probe" json:"probe" yaml:"probe"`
}

// RateConfig configures the client-side token bucket. A zero limit disables it.
type RateConfig struct {
	Limit float64 `koanf:"limit" json:"limit" yaml:"limit" validate:"gte=0"`
	Burst int     `koanf:"burst" json:"burst" yaml:"burst" validate:"gte=0"`
}

// ProbeConfig configures the connectivity prober that drives the network
// status. An empty address disables probing.
type ProbeConfig struct {
	Address  string        `koanf:"address" json:"address" yaml:"address" validate:"omitempty,hostname_port"`
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" validate:"gte=0"`
}
