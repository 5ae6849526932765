package observability

import (
	"errors"
	"fmt"
)

// Validation failures reported by Config.Validate. Export problems arrive
// wrapped in an *ExportError naming the signal.
var (
	ErrNilConfig          = errors.New("observability: config is nil")
	ErrMissingServiceName = errors.New("observability: service name is required when enabled")
	ErrInvalidSampleRate  = errors.New("observability: trace sample rate must be within [0, 1]")

	ErrInvalidProtocol       = errors.New("observability: protocol must be http or grpc")
	ErrInvalidEndpointFormat = errors.New("observability: endpoint does not match protocol (grpc takes host:port, http takes a URL)")
	ErrInvalidCompression    = errors.New("observability: compression must be gzip or none")
)

// Telemetry signals.
const (
	SignalTraces  = "traces"
	SignalMetrics = "metrics"
)

// ExportError is an invalid exporter setting for one signal.
type ExportError struct {
	Signal   string
	Endpoint string
	Err      error
}

func (e *ExportError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("%s exporter: %v", e.Signal, e.Err)
	}
	return fmt.Sprintf("%s exporter %q: %v", e.Signal, e.Endpoint, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
