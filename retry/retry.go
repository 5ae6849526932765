// Package retry decides whether a failed attempt should be retried and how
// long to wait before the next one.
//
// Retries occur on:
//   - Timeouts (timeout codes, deadline/net timeouts, a request that got no
//     response because it timed out, or HTTP 504)
//   - Network failures (no response at all, or a known connectivity code)
//   - HTTP 5xx responses
//
// 4xx responses, malformed requests and cancellations are never retried.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/gaborage/go-fetch/abort"
	"github.com/gaborage/go-fetch/transport"
)

// Kind is the retry classification of an error.
type Kind int

const (
	Unknown Kind = iota
	Timeout
	Network
	Server
	Client
	Malformed
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case Network:
		return "network"
	case Server:
		return "server"
	case Client:
		return "client"
	case Malformed:
		return "malformed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Retryable reports whether errors of this kind may be retried.
func (k Kind) Retryable() bool {
	return k == Timeout || k == Network || k == Server
}

var timeoutCodes = map[string]struct{}{
	transport.CodeTimedOut:    {},
	transport.CodeConnAborted: {},
}

var networkCodes = map[string]struct{}{
	transport.CodeConnRefused:    {},
	transport.CodeConnReset:      {},
	transport.CodeNotFound:       {},
	transport.CodeNetUnreachable: {},
	transport.CodeTryAgain:       {},
	transport.CodeNetwork:        {},
}

var networkMessages = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"broken pipe",
	"failed to fetch",
	"eof",
}

// Classify sorts err into a Kind. The status of an HTTP error wins over the
// error chain; interceptor errors are classified by their cause.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}

	if status := transport.StatusCode(err); status != 0 {
		switch {
		case status == 504:
			return Timeout
		case status >= 500:
			return Server
		case status >= 400:
			return Client
		}
	}

	if errors.Is(err, abort.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, abort.ErrAborted) {
		return Cancelled
	}
	if transport.IsErrorType(err, transport.ValidationError) {
		return Malformed
	}

	code := transport.ErrorCode(err)
	if _, ok := timeoutCodes[code]; ok {
		return Timeout
	}
	if transport.IsErrorType(err, transport.TimeoutError) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}

	if _, ok := networkCodes[code]; ok {
		return Network
	}
	if transport.IsErrorType(err, transport.NetworkError) {
		if _, hasResponse := transport.ResponseOf(err); !hasResponse {
			return Network
		}
		// A response arrived but could not be read; the same body fails again.
		return Unknown
	}

	msg := strings.ToLower(err.Error())
	for _, m := range networkMessages {
		if strings.Contains(msg, m) {
			return Network
		}
	}
	return Unknown
}

// ShouldRetry reports whether another attempt should be made.
// currentAttempt is the number of attempts already performed.
func ShouldRetry(err error, enabled bool, currentAttempt, maxAttempts int, isCancellation bool) bool {
	if isCancellation || !enabled || currentAttempt >= maxAttempts {
		return false
	}
	return Classify(err).Retryable()
}

// DelayFunc computes the delay before the given 1-based retry attempt.
type DelayFunc func(attempt int) time.Duration

// Policy is the delay part of a retry policy.
type Policy struct {
	Delay     time.Duration
	DelayFunc DelayFunc
}

// Delay returns the wait before attempt (1-based). A non-positive result
// means retry immediately.
func Delay(p Policy, attempt int) time.Duration {
	d := p.Delay
	if p.DelayFunc != nil {
		d = p.DelayFunc(attempt)
	}
	if d < 0 {
		return 0
	}
	return d
}
