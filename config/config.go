// Package config loads go-fetch client configuration from layered sources
// and turns it into request defaults, a transport and a logger.
//
// Sources are applied in increasing priority:
//  1. built-in defaults
//  2. YAML files (config.yaml, then config.<app.env>.yaml)
//  3. inline YAML passed with WithYAML
//  4. environment variables with the FETCH_ prefix
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the default prefix of environment variables read by Load.
const EnvPrefix = "FETCH_"

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Transport kinds
const (
	TransportNative = "native"
	TransportResty  = "resty"
)

// Backoff strategies
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
	BackoffJittered    = "jittered"
)

type loadOptions struct {
	files     []string
	inline    [][]byte
	envPrefix string
	skipFiles bool
}

// Option customizes Load.
type Option func(*loadOptions)

// WithFile loads path instead of config.yaml. A missing file is an error.
func WithFile(path string) Option {
	return func(o *loadOptions) { o.files = append(o.files, path) }
}

// WithYAML layers an inline YAML document above the files.
func WithYAML(doc []byte) Option {
	return func(o *loadOptions) { o.inline = append(o.inline, doc) }
}

// WithEnvPrefix reads environment variables with prefix instead of FETCH_.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) { o.envPrefix = prefix }
}

// WithoutFiles skips the implicit config.yaml lookup.
func WithoutFiles() Option {
	return func(o *loadOptions) { o.skipFiles = true }
}

// Load builds a validated Config from defaults, YAML and the environment.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{envPrefix: EnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadFiles(k, &o); err != nil {
		return nil, err
	}

	for i, doc := range o.inline {
		if err := k.Load(rawbytes.Provider(doc), yaml.Parser()); err != nil {
			return nil, NewSourceError(fmt.Sprintf("inline config #%d", i+1), err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        o.envPrefix,
		TransformFunc: envKey(o.envPrefix),
	}), nil); err != nil {
		return nil, NewSourceError("environment", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if cfg.Observability.Service.Name == "" {
		cfg.Observability.Service.Name = cfg.App.Name
	}
	if cfg.Observability.Service.Version == "" {
		cfg.Observability.Service.Version = cfg.App.Version
	}
	if cfg.Observability.Environment == "" {
		cfg.Observability.Environment = cfg.App.Env
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envKey maps FETCH_CLIENT_RETRY_COUNT to client.retry.count.
func envKey(prefix string) func(key, value string) (string, any) {
	return func(key, value string) (string, any) {
		key = strings.TrimPrefix(key, prefix)
		if key == "" {
			return "", nil
		}
		return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
	}
}

// loadFiles loads explicit files, or the optional config.yaml and its
// environment overlay.
func loadFiles(k *koanf.Koanf, o *loadOptions) error {
	if len(o.files) > 0 {
		for _, path := range o.files {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return NewSourceError(path, err)
			}
		}
		return nil
	}
	if o.skipFiles {
		return nil
	}

	if err := loadOptionalFile(k, "config.yaml"); err != nil {
		return err
	}
	if appEnv := k.String("app.env"); appEnv != "" {
		if err := loadOptionalFile(k, fmt.Sprintf("config.%s.yaml", appEnv)); err != nil {
			return err
		}
	}
	return nil
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	err := k.Load(file.Provider(path), yaml.Parser())
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return NewSourceError(path, err)
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "go-fetch",
		"app.version": "v0.0.0",
		"app.env":     EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"client.method":         "GET",
		"client.responsetype":   "json",
		"client.timeout":        "0s",
		"client.correlation":    false,
		"client.retry.enabled":  false,
		"client.retry.count":    0,
		"client.retry.delay":    "1s",
		"client.retry.backoff":  BackoffFixed,
		"client.retry.maxdelay": "30s",

		"client.reactivity.immediate": true,

		"transport.kind":           TransportNative,
		"transport.useragent":      "go-fetch",
		"transport.compression":    false,
		"transport.tracing":        false,
		"transport.rate.limit":     0,
		"transport.rate.burst":     1,
		"transport.probe.interval": "5s",

		"observability.enabled": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
