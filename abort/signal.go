// Package abort provides a one-shot cancellation signal that can be linked to
// other signals and bridged into a context.Context for transport calls.
package abort

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrAborted is the default reason recorded when Abort is called with a nil reason.
	ErrAborted = errors.New("request aborted")

	// ErrTimeout is the reason recorded by signals created with Timeout.
	ErrTimeout = errors.New("request timed out")
)

// Signal is a one-shot cancellation token. The first Abort wins; every
// later call is a no-op. Listeners registered with OnAbort run exactly once.
type Signal struct {
	mu        sync.Mutex
	done      chan struct{}
	reason    error
	listeners []func(error)
	timer     *time.Timer
}

// New creates a signal that has not been aborted.
func New() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Timeout creates a signal that aborts itself with ErrTimeout after d.
// Stop releases the timer when the signal is no longer needed.
func Timeout(d time.Duration) *Signal {
	s := New()
	s.mu.Lock()
	s.timer = time.AfterFunc(d, func() { s.Abort(ErrTimeout) })
	s.mu.Unlock()
	return s
}

// Abort fires the signal with the given reason. It reports whether this call
// was the one that fired it.
func (s *Signal) Abort(reason error) bool {
	if reason == nil {
		reason = ErrAborted
	}

	s.mu.Lock()
	if s.reason != nil {
		s.mu.Unlock()
		return false
	}
	s.reason = reason
	listeners := s.listeners
	s.listeners = nil
	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.done)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(reason)
	}
	return true
}

// Done returns a channel closed when the signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Aborted reports whether the signal has fired.
func (s *Signal) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason != nil
}

// Reason returns the error passed to the first Abort, or nil.
func (s *Signal) Reason() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// OnAbort registers fn to run once when the signal fires. If the signal has
// already fired, fn runs immediately on the calling goroutine.
func (s *Signal) OnAbort(fn func(reason error)) {
	s.mu.Lock()
	if s.reason != nil {
		reason := s.reason
		s.mu.Unlock()
		fn(reason)
		return
	}
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Stop releases the timer of a Timeout signal without firing it.
func (s *Signal) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Link wires a and b together so that firing either fires the other with the
// same reason. Each signal still fires at most once.
func Link(a, b *Signal) {
	a.OnAbort(func(reason error) { b.Abort(reason) })
	b.OnAbort(func(reason error) { a.Abort(reason) })
}

// Context derives a context that is cancelled, with the signal's reason as
// cause, when s fires. The returned CancelFunc must be called to release it.
func (s *Signal) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	s.OnAbort(func(reason error) { cancel(reason) })
	return ctx, func() { cancel(context.Canceled) }
}
