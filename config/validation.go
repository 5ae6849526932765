package config

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/gaborage/go-fetch/decode"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

var httpMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// structValidator returns the shared validator with the custom rules
// registered and koanf keys used as field names.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
			return name
		})
		_ = v.RegisterValidation("httpmethod", validateHTTPMethod)
		_ = v.RegisterValidation("responsetype", validateResponseType)
		validate = v
	})
	return validate
}

// Validate checks cfg and returns the first problem as a *ConfigError.
func Validate(cfg *Config) error {
	if cfg == nil {
		return NewInvalidFieldError("config", "is nil", nil)
	}

	if err := structValidator().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return err
	}

	if cfg.Client.Retry.Enabled && cfg.Client.Retry.Count == 0 {
		return NewInvalidFieldError("client.retry.count", "must be positive when retries are enabled", nil)
	}

	if err := cfg.Observability.Validate(); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}
	return nil
}

// fieldError converts a validator failure into a ConfigError keyed by the
// dotted koanf path.
func fieldError(fe validator.FieldError) *ConfigError {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		ns = rest
	}

	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(ns)
	case "oneof":
		return NewInvalidFieldError(ns, fmt.Sprintf("invalid value %q", fe.Value()), strings.Fields(fe.Param()))
	case "httpmethod":
		return NewInvalidFieldError(ns, fmt.Sprintf("invalid value %q", fe.Value()), httpMethods)
	case "responsetype":
		return NewInvalidFieldError(ns, fmt.Sprintf("invalid value %q", fe.Value()), []string{
			string(decode.JSON), string(decode.Text), string(decode.Blob),
			string(decode.ArrayBuffer), string(decode.Document), string(decode.Form),
		})
	case "url":
		return NewInvalidFieldError(ns, "must be an absolute URL", nil)
	case "hostname_port":
		return NewInvalidFieldError(ns, "must be host:port", nil)
	case "gte":
		return NewInvalidFieldError(ns, "must not be negative", nil)
	default:
		return NewInvalidFieldError(ns, fmt.Sprintf("failed %s validation", fe.Tag()), nil)
	}
}

// envName returns the environment variable that sets key.
func envName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func validateHTTPMethod(fl validator.FieldLevel) bool {
	method := strings.ToUpper(fl.Field().String())
	for _, m := range httpMethods {
		if m == method {
			return true
		}
	}
	return false
}

func validateResponseType(fl validator.FieldLevel) bool {
	_, err := decode.ParseType(fl.Field().String())
	return err == nil
}
