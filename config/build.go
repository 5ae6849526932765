package config

import (
	"strings"

	"golang.org/x/time/rate"

	"github.com/gaborage/go-fetch/decode"
	"github.com/gaborage/go-fetch/fetch"
	"github.com/gaborage/go-fetch/logger"
	"github.com/gaborage/go-fetch/observability"
	"github.com/gaborage/go-fetch/reactive"
	"github.com/gaborage/go-fetch/retry"
	"github.com/gaborage/go-fetch/trace"
	"github.com/gaborage/go-fetch/transport"
)

// Options converts the client section into a fetch.Config suitable for
// fetch.SetDefaults. Values under the custom namespace become Config.Custom.
// With correlation on, the result carries the trace header interceptor; a
// request setting its own BeforeFetch replaces it unless it chains
// trace.BeforeFetch itself.
func (c *Config) Options() fetch.Config {
	cl := c.Client
	rt, err := decode.ParseType(cl.ResponseType)
	if err != nil {
		rt = decode.JSON
	}

	var headers map[string]string
	if len(cl.Headers) > 0 {
		headers = make(map[string]string, len(cl.Headers))
		for k, v := range cl.Headers {
			headers[k] = v
		}
	}

	var interceptors fetch.Interceptors
	if cl.Correlation {
		interceptors.BeforeFetch = trace.BeforeFetch()
	}

	return fetch.Config{
		BaseURL:           cl.BaseURL,
		Method:            strings.ToUpper(cl.Method),
		Headers:           headers,
		ResponseType:      rt,
		Timeout:           cl.Timeout,
		UpdateDataOnError: fetch.Bool(cl.UpdateDataOnError),
		Custom:            c.Custom(),
		Retry: fetch.RetryPolicy{
			Enabled:   fetch.Bool(cl.Retry.Enabled),
			Count:     cl.Retry.Count,
			Delay:     cl.Retry.Delay,
			DelayFunc: c.delayFunc(),
		},
		Reactivity: fetch.ReactivityFlags{
			Immediate:          fetch.Bool(cl.Reactivity.Immediate),
			Refetch:            fetch.Bool(cl.Reactivity.Refetch),
			RefetchOnReconnect: fetch.Bool(cl.Reactivity.RefetchOnReconnect),
			RefetchOnFocus:     fetch.Bool(cl.Reactivity.RefetchOnFocus),
			CancelOnBlur:       fetch.Bool(cl.Reactivity.CancelOnBlur),
		},
		Interceptors: interceptors,
	}
}

func (c *Config) delayFunc() retry.DelayFunc {
	r := c.Client.Retry
	maxDelay := r.MaxDelay
	if maxDelay < r.Delay {
		maxDelay = r.Delay
	}
	switch r.Backoff {
	case BackoffExponential:
		return retry.Exponential(r.Delay, maxDelay)
	case BackoffJittered:
		return retry.Jittered(r.Delay, maxDelay)
	default:
		return nil
	}
}

// ApplyDefaults installs Options as the process-wide request defaults.
func (c *Config) ApplyDefaults() error {
	return fetch.SetDefaults(c.Options())
}

// Logger creates the zerolog-backed logger described by the log section.
func (c *Config) Logger() *logger.ZeroLogger {
	return logger.New(c.Log.Level, c.Log.Pretty)
}

// Limiter returns the client-side rate limiter, or nil when unlimited.
func (c *Config) Limiter() *rate.Limiter {
	r := c.Transport.Rate
	if r.Limit <= 0 {
		return nil
	}
	burst := r.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(r.Limit), burst)
}

// NewTransport builds the configured transport.
func (c *Config) NewTransport(log logger.Logger) transport.Transport {
	if log == nil {
		log = logger.Nop()
	}
	t := c.Transport
	limiter := c.Limiter()

	if t.Kind == TransportResty {
		opts := []transport.RestyOption{
			transport.WithRestyLogger(log),
			transport.WithRestyUserAgent(t.UserAgent),
		}
		if limiter != nil {
			opts = append(opts, transport.WithRestyLimiter(limiter))
		}
		return transport.NewResty(opts...)
	}

	opts := []transport.NativeOption{
		transport.WithNativeLogger(log),
		transport.WithNativeUserAgent(t.UserAgent),
	}
	if limiter != nil {
		opts = append(opts, transport.WithNativeLimiter(limiter))
	}
	if t.Compression {
		opts = append(opts, transport.WithCompression())
	}
	if t.Tracing {
		opts = append(opts, transport.WithTracing())
	}
	return transport.NewNative(opts...)
}

// NewProber returns a prober driving status, or nil when probing is off.
func (c *Config) NewProber(status *reactive.Ref[bool], log logger.Logger) *reactive.Prober {
	p := c.Transport.Probe
	if p.Address == "" {
		return nil
	}
	prober := reactive.NewProber(status, p.Address, p.Interval)
	if log != nil {
		prober.Logger = log
	}
	return prober
}

// NewObservability creates the telemetry provider described by the
// observability section.
func (c *Config) NewObservability(log logger.Logger) (observability.Provider, error) {
	return observability.NewProvider(&c.Observability, log)
}
