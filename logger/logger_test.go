package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMessage = "test message"

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewWithWriterLevels(t *testing.T) {
	t.Run("debug suppressed at info", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "info")
		log.Debug().Msg(testMessage)
		assert.Zero(t, buf.Len())
	})

	t.Run("invalid level defaults to info", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "bogus")
		log.Info().Msg(testMessage)
		entry := decodeLine(t, &buf)
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, testMessage, entry["message"])
	})
}

func TestEventFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug")

	log.Warn().
		Str("method", "GET").
		Int("attempt", 2).
		Int64("calls", 7).
		Bool("retry", true).
		Dur("delay", 10*time.Millisecond).
		Err(errors.New("boom")).
		Msg("retrying")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.EqualValues(t, 2, entry["attempt"])
	assert.EqualValues(t, 7, entry["calls"])
	assert.Equal(t, true, entry["retry"])
	assert.Equal(t, "boom", entry["error"])
}

func TestWithFieldsMasksSensitiveData(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info").WithFields(map[string]any{
		"authorization": "Bearer abc",
		"request_id":    "r-1",
	})
	log.Info().Msg(testMessage)

	entry := decodeLine(t, &buf)
	assert.Equal(t, DefaultMaskValue, entry["authorization"])
	assert.Equal(t, "r-1", entry["request_id"])
}

func TestFilterValue(t *testing.T) {
	f := NewSensitiveDataFilter(nil)

	h := http.Header{}
	h.Set("Authorization", "Bearer abc")
	h.Set("Accept", "application/json")
	filtered := f.FilterValue("headers", h).(http.Header)
	assert.Equal(t, DefaultMaskValue, filtered.Get("Authorization"))
	assert.Equal(t, "application/json", filtered.Get("Accept"))
	assert.Equal(t, "Bearer abc", h.Get("Authorization"), "original header must be untouched")

	m := f.FilterValue("headers", map[string]string{"Cookie": "sid=1", "X-Trace": "t"}).(map[string]string)
	assert.Equal(t, DefaultMaskValue, m["Cookie"])
	assert.Equal(t, "t", m["X-Trace"])
}

func TestFilterStringMasksURLs(t *testing.T) {
	f := NewSensitiveDataFilter(nil)

	masked := f.FilterString("url", "https://user:pw@example.com/api?token=abc&page=2")
	assert.NotContains(t, masked, "pw")
	assert.NotContains(t, masked, "abc")
	assert.Contains(t, masked, "page=2")

	assert.Equal(t, "plain", f.FilterString("url", "plain"))
	assert.Equal(t, DefaultMaskValue, f.FilterString("password", "hunter2"))
}

func TestNop(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.Info().Str("k", "v").Msg(testMessage)
		log.WithFields(map[string]any{"a": 1}).Error().Msgf("%d", 1)
	})
}

func TestEventHeadersAndURLsAreMasked(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug")

	h := http.Header{}
	h.Set("Authorization", "Bearer abc")
	h.Set("Accept", "application/json")
	log.Debug().
		Str("url", "https://api.example.test/items?api_key=k1&page=2").
		Headers("headers", h).
		Headers("empty", nil).
		Msg("transport request")

	entry := decodeLine(t, &buf)
	assert.NotContains(t, entry["url"], "k1")
	headers, ok := entry["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{DefaultMaskValue}, headers["Authorization"])
	assert.Equal(t, []any{"application/json"}, headers["Accept"])
	assert.NotContains(t, entry, "empty", "empty headers are omitted")
}

func TestDisabledEventsSkipFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "error")
	assert.NotPanics(t, func() {
		log.Debug().Headers("headers", http.Header{"Cookie": {"sid"}}).Interface("x", 1).Msg(testMessage)
	})
	assert.Zero(t, buf.Len())
}
