package testutil

import (
	"context"
	"net/http"
	"sync"

	"github.com/gaborage/go-fetch/decode"
	"github.com/gaborage/go-fetch/transport"
)

// Step answers one transport call.
type Step func(ctx context.Context, req *transport.Request) (*transport.Response, error)

// ScriptedTransport answers calls with its steps in order, repeating the last
// one once they run out. It records every request it receives.
type ScriptedTransport struct {
	mu       sync.Mutex
	steps    []Step
	requests []*transport.Request
}

var _ transport.Transport = (*ScriptedTransport)(nil)

// NewScripted creates a transport answering with steps.
func NewScripted(steps ...Step) *ScriptedTransport {
	return &ScriptedTransport{steps: steps}
}

// Do records req and runs the next step.
func (s *ScriptedTransport) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	n := len(s.requests)
	var step Step
	if len(s.steps) > 0 {
		idx := n - 1
		if idx >= len(s.steps) {
			idx = len(s.steps) - 1
		}
		step = s.steps[idx]
	}
	s.mu.Unlock()

	if step == nil {
		return Respond(http.StatusOK, "")(ctx, req)
	}
	return step(ctx, req)
}

// Calls returns the number of calls made so far.
func (s *ScriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns the recorded requests.
func (s *ScriptedTransport) Requests() []*transport.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*transport.Request(nil), s.requests...)
}

// Last returns the most recent request, or nil.
func (s *ScriptedTransport) Last() *transport.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

// Respond answers with status and a JSON body.
func Respond(status int, body string) Step {
	return RespondAs(status, JSONContentType, body)
}

// RespondAs answers with status and body labelled as contentType.
func RespondAs(status int, contentType, body string) Step {
	return func(_ context.Context, req *transport.Request) (*transport.Response, error) {
		header := http.Header{}
		header.Set(ContentTypeHeader, contentType)
		readAs := req.ResponseType
		if readAs == "" {
			readAs = decode.JSON
		}
		return &transport.Response{
			StatusCode: status,
			Status:     http.StatusText(status),
			Header:     header,
			Body:       []byte(body),
			ReadAs:     readAs,
		}, nil
	}
}

// JSON answers 200 with body.
func JSON(body string) Step {
	return Respond(http.StatusOK, body)
}

// Fail answers with err.
func Fail(err error) Step {
	return func(context.Context, *transport.Request) (*transport.Response, error) {
		return nil, err
	}
}

// NetworkDown answers with a network error carrying no response.
func NetworkDown() Step {
	return Fail(transport.NewNetworkError(TestConnectionRefused, transport.CodeConnRefused, nil, nil))
}

// Block waits until ctx is done and answers with an aborted network error.
// If started is non-nil it is closed once the call begins.
func Block(started chan<- struct{}) Step {
	var once sync.Once
	return func(ctx context.Context, _ *transport.Request) (*transport.Response, error) {
		if started != nil {
			once.Do(func() { close(started) })
		}
		<-ctx.Done()
		return nil, transport.NewNetworkError("request aborted", transport.CodeCanceled, nil, context.Cause(ctx))
	}
}
