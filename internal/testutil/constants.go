// Package testutil provides shared constants, an echo-backed test server and
// a scripted transport for tests across go-fetch.
package testutil

// Test Error Messages
//
// These constants define common error messages used in test assertions.

const (
	// TestError is a generic error message for test error scenarios.
	TestError = "test error"

	// TestConnectionRefused is the common network error message for connection failures.
	TestConnectionRefused = "connection refused"
)

// Test Endpoints
//
// These constants define the routes registered by NewServer.

const (
	// PathUser answers a JSON user object.
	PathUser = "/api/user/info"

	// PathEcho echoes method, query, headers and body back as JSON.
	PathEcho = "/echo"

	// PathStatus answers the status given by the "code" query parameter.
	PathStatus = "/status"

	// PathSlow answers after the duration given by the "delay" query parameter.
	PathSlow = "/slow"

	// PathMultipart parses a multipart body and answers its field names.
	PathMultipart = "/multipart"

	// PathCompressed answers a gzip-encoded JSON body.
	PathCompressed = "/compressed"

	// PathHTML answers a small HTML document.
	PathHTML = "/page"
)

// Test Header Values

const (
	// ContentTypeHeader is the Content-Type header name.
	ContentTypeHeader = "Content-Type"

	// JSONContentType is the JSON media type.
	JSONContentType = "application/json"

	// TestUserName is the name in the PathUser payload.
	TestUserName = "ada"
)
