package retry

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Fixed returns a DelayFunc that always waits d.
func Fixed(d time.Duration) DelayFunc {
	return func(int) time.Duration { return d }
}

// Exponential returns a DelayFunc doubling from base up to max, using
// retryablehttp's default backoff curve.
func Exponential(base, max time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		return retryablehttp.DefaultBackoff(base, max, attempt-1, nil)
	}
}

// Jittered returns a DelayFunc growing linearly with the attempt number:
// retry n waits n times a random value between min and max.
func Jittered(min, max time.Duration) DelayFunc {
	return func(attempt int) time.Duration {
		// LinearJitterBackoff counts from zero.
		return retryablehttp.LinearJitterBackoff(min, max, attempt-1, nil)
	}
}
