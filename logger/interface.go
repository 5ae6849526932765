// Package logger defines the structured logging contract used by the engine
// and its transports, with a zerolog-backed implementation that masks
// credentials in URLs, headers and named fields.
package logger

import (
	"net/http"
	"time"
)

// Logger hands out leveled events.
type Logger interface {
	Debug() LogEvent
	Info() LogEvent
	Warn() LogEvent
	Error() LogEvent
	WithFields(fields map[string]any) Logger
}

// LogEvent accumulates fields and is sent by Msg or Msgf. Field methods
// return the event itself so calls chain.
type LogEvent interface {
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Bool(key string, value bool) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Err(err error) LogEvent
	Interface(key string, i any) LogEvent
	// Headers logs h with credential-bearing headers masked.
	Headers(key string, h http.Header) LogEvent

	Msg(msg string)
	Msgf(format string, args ...any)
}
