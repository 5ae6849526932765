package logger

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// event is a zerolog event with masking applied to string-like fields. A
// nil zerolog event (level disabled) turns every call into a no-op.
type event struct {
	ev     *zerolog.Event
	filter *SensitiveDataFilter
}

var _ LogEvent = (*event)(nil)

func newEvent(ev *zerolog.Event, filter *SensitiveDataFilter) *event {
	return &event{ev: ev, filter: filter}
}

func (e *event) Str(key, value string) LogEvent {
	if e.filter != nil && e.ev.Enabled() {
		value = e.filter.FilterString(key, value)
	}
	e.ev.Str(key, value)
	return e
}

func (e *event) Int(key string, value int) LogEvent {
	e.ev.Int(key, value)
	return e
}

func (e *event) Int64(key string, value int64) LogEvent {
	e.ev.Int64(key, value)
	return e
}

func (e *event) Bool(key string, value bool) LogEvent {
	e.ev.Bool(key, value)
	return e
}

func (e *event) Dur(key string, d time.Duration) LogEvent {
	e.ev.Dur(key, d)
	return e
}

func (e *event) Err(err error) LogEvent {
	e.ev.Err(err)
	return e
}

func (e *event) Interface(key string, i any) LogEvent {
	if e.filter != nil && e.ev.Enabled() {
		i = e.filter.FilterValue(key, i)
	}
	e.ev.Interface(key, i)
	return e
}

func (e *event) Headers(key string, h http.Header) LogEvent {
	if !e.ev.Enabled() || len(h) == 0 {
		return e
	}
	return e.Interface(key, h)
}

func (e *event) Msg(msg string) {
	e.ev.Msg(msg)
}

func (e *event) Msgf(format string, args ...any) {
	e.ev.Msgf(format, args...)
}
