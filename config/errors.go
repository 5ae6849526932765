package config

import (
	"errors"
	"fmt"
	"strings"
)

// Category classifies a ConfigError.
type Category string

const (
	// CategoryMissing is a required key with no value in any layer.
	CategoryMissing Category = "missing"
	// CategoryInvalid is a value that failed validation.
	CategoryInvalid Category = "invalid"
	// CategorySource is a layer (file, inline document, environment) that
	// could not be read or parsed.
	CategorySource Category = "source"
)

// Sentinels matched by errors.Is against a *ConfigError of the same category.
var (
	ErrMissing = errors.New("config: missing value")
	ErrInvalid = errors.New("config: invalid value")
	ErrSource  = errors.New("config: unreadable source")
)

// ConfigError reports one configuration problem. Key is the dotted koanf
// key, or the source name for CategorySource. Hint tells the operator how
// to fix it.
//
//nolint:revive // config.ConfigError reads better at call sites than config.Error
type ConfigError struct {
	Category Category
	Key      string
	Message  string
	Hint     string
	Cause    error
}

// Error formats as "config <category>: <key> <message> (<hint>): <cause>",
// omitting empty parts.
func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Category != "" {
		b.WriteString(" " + string(e.Category))
	}
	b.WriteString(":")
	for _, part := range []string{e.Key, e.Message} {
		if part != "" {
			b.WriteString(" " + part)
		}
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (%s)", e.Hint)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// Is matches the sentinel of e's category.
func (e *ConfigError) Is(target error) bool {
	switch target {
	case ErrMissing:
		return e.Category == CategoryMissing
	case ErrInvalid:
		return e.Category == CategoryInvalid
	case ErrSource:
		return e.Category == CategorySource
	}
	return false
}

// NewMissingFieldError reports a required key, naming the environment
// variable that would set it.
func NewMissingFieldError(key string) *ConfigError {
	return &ConfigError{
		Category: CategoryMissing,
		Key:      key,
		Message:  "is required",
		Hint:     fmt.Sprintf("set %s or add %s to a config file", envName(key), key),
	}
}

// NewInvalidFieldError reports a bad value. options, when given, are listed
// in the hint.
func NewInvalidFieldError(key, message string, options []string) *ConfigError {
	err := &ConfigError{Category: CategoryInvalid, Key: key, Message: message}
	if len(options) > 0 {
		err.Hint = "must be one of: " + strings.Join(options, ", ")
	}
	return err
}

// NewSourceError reports a layer that failed to load.
func NewSourceError(source string, cause error) *ConfigError {
	return &ConfigError{Category: CategorySource, Key: source, Message: "could not be loaded", Cause: cause}
}
