package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/labstack/echo/v4"
)

// EchoReply is the payload answered by PathEcho.
type EchoReply struct {
	Method      string              `json:"method"`
	Query       map[string][]string `json:"query"`
	Headers     map[string]string   `json:"headers"`
	Body        string              `json:"body"`
	ContentType string              `json:"content_type"`
}

// NewServer starts an echo-backed HTTP server with the test routes
// registered. extra may register more routes. The server is closed when the
// test ends.
func NewServer(t testing.TB, extra ...func(e *echo.Echo)) *httptest.Server {
	t.Helper()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET(PathUser, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"id": 1, "name": TestUserName})
	})

	e.Any(PathEcho, func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		headers := make(map[string]string, len(c.Request().Header))
		for k := range c.Request().Header {
			headers[k] = c.Request().Header.Get(k)
		}
		return c.JSON(http.StatusOK, EchoReply{
			Method:      c.Request().Method,
			Query:       c.QueryParams(),
			Headers:     headers,
			Body:        string(body),
			ContentType: c.Request().Header.Get(ContentTypeHeader),
		})
	})

	e.Any(PathStatus, func(c echo.Context) error {
		code, err := strconv.Atoi(c.QueryParam("code"))
		if err != nil {
			code = http.StatusOK
		}
		return c.JSON(code, map[string]any{"status": code})
	})

	e.GET(PathSlow, func(c echo.Context) error {
		delay, err := time.ParseDuration(c.QueryParam("delay"))
		if err != nil {
			delay = time.Second
		}
		select {
		case <-time.After(delay):
			return c.JSON(http.StatusOK, map[string]any{"slow": true})
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	})

	e.POST(PathMultipart, func(c echo.Context) error {
		form, err := c.MultipartForm()
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
		}
		fields := make([]string, 0, len(form.Value)+len(form.File))
		for k := range form.Value {
			fields = append(fields, k)
		}
		for k := range form.File {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		return c.JSON(http.StatusOK, map[string]any{"fields": fields})
	})

	e.GET(PathCompressed, func(c echo.Context) error {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write([]byte(`{"compressed":true}`)); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		c.Response().Header().Set("Content-Encoding", "gzip")
		return c.Blob(http.StatusOK, JSONContentType, buf.Bytes())
	})

	e.GET(PathHTML, func(c echo.Context) error {
		return c.HTML(http.StatusOK, `<html><head><title>go-fetch</title></head><body><p class="x">hello</p></body></html>`)
	})

	for _, register := range extra {
		register(e)
	}

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}
