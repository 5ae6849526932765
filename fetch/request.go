package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gaborage/go-fetch/abort"
	"github.com/gaborage/go-fetch/decode"
	"github.com/gaborage/go-fetch/logger"
	"github.com/gaborage/go-fetch/observability"
	"github.com/gaborage/go-fetch/reactive"
	"github.com/gaborage/go-fetch/transport"
)

// Abort reasons used by the engine. Executions ended by any of them report
// Cancelled rather than an error.
var (
	// ErrCancelled is the reason of a manual Cancel.
	ErrCancelled = errors.New("request cancelled")
	// ErrSuperseded aborts an in-flight execution when a newer one starts.
	ErrSuperseded = errors.New("request superseded by a newer execution")
	// ErrDetached aborts an in-flight execution when the request is detached.
	ErrDetached = errors.New("request detached")
)

// Option configures the collaborators of a Request.
type Option func(*Request)

// WithTransport sets the transport. The default is a Native transport.
func WithTransport(t transport.Transport) Option {
	return func(r *Request) {
		if t != nil {
			r.transport = t
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log logger.Logger) Option {
	return func(r *Request) {
		if log != nil {
			r.log = log
		}
	}
}

// WithInstruments records telemetry into inst.
func WithInstruments(inst *observability.Instruments) Option {
	return func(r *Request) {
		r.inst = inst
	}
}

// WithNetworkStatus sets the online/offline source watched once attached.
func WithNetworkStatus(status *reactive.Ref[bool]) Option {
	return func(r *Request) {
		r.network = status
	}
}

// WithVisibility sets the visibility source watched once attached.
func WithVisibility(v *reactive.Ref[reactive.Visibility]) Option {
	return func(r *Request) {
		r.visibility = v
	}
}

// Request is the user-facing handle of one configured request.
type Request struct {
	source     URLSource
	transport  transport.Transport
	log        logger.Logger
	inst       *observability.Instruments
	network    *reactive.Ref[bool]
	visibility *reactive.Ref[reactive.Visibility]

	mu         sync.Mutex
	config     Config
	state      State
	attempt    int
	generation uint64
	active     *abort.Signal
	onResponse []subscriber[ResponseEvent]
	onError    []subscriber[error]
	nextSubID  int

	// notify delivers state snapshots to watchers outside mu.
	notify *reactive.Ref[State]

	binding binding
	bg      sync.WaitGroup
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// New creates a request for src. The process-wide defaults are layered
// under cfg.
func New(src URLSource, cfg Config, opts ...Option) (*Request, error) {
	if src == nil {
		return nil, transport.NewValidationError("URL source cannot be nil", "url", nil)
	}
	merged, err := withDefaults(cfg)
	if err != nil {
		return nil, err
	}
	if merged.ResponseType != "" && !merged.ResponseType.Valid() {
		return nil, transport.NewValidationError("unsupported response type "+string(merged.ResponseType), "response_type", nil)
	}

	initial := State{Data: merged.InitialData}
	r := &Request{
		source: src,
		config: merged,
		state:  initial,
		notify: reactive.NewRef(initial),
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.transport == nil {
		r.transport = transport.NewNative(transport.WithNativeLogger(r.log))
	}
	return r, nil
}

// MustNew is like New but panics on error.
func MustNew(src URLSource, cfg Config, opts ...Option) *Request {
	r, err := New(src, cfg, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get creates a GET request for url.
func Get(url string, cfg Config, opts ...Option) (*Request, error) {
	cfg.Method = http.MethodGet
	return New(StaticURL(url), cfg, opts...)
}

// Post creates a POST request for url carrying body.
func Post(url string, body any, cfg Config, opts ...Option) (*Request, error) {
	cfg.Method = http.MethodPost
	cfg.Body = body
	return New(StaticURL(url), cfg, opts...)
}

// State returns a snapshot of the current state.
func (r *Request) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Config returns a copy of the request configuration.
func (r *Request) Config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneConfig(r.config)
}

// Watch registers fn to receive every state change and returns a function
// that unregisters it.
func (r *Request) Watch(fn func(State)) (stop func()) {
	return r.notify.Watch(func(s, _ State) { fn(s) })
}

// Field accessors over State.
func (r *Request) Data() any       { return r.State().Data }
func (r *Request) Err() error      { return r.State().Err }
func (r *Request) Loading() bool   { return r.State().Loading }
func (r *Request) Finished() bool  { return r.State().Finished }
func (r *Request) StatusCode() int { return r.State().StatusCode }
func (r *Request) CanCancel() bool { return r.State().CanCancel }
func (r *Request) Cancelled() bool { return r.State().Cancelled }

// OnResponse subscribes fn to successful executions.
func (r *Request) OnResponse(fn func(ResponseEvent)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSubID++
	id := r.nextSubID
	r.onResponse = append(r.onResponse, subscriber[ResponseEvent]{id: id, fn: fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.onResponse = removeSubscriber(r.onResponse, id)
	}
}

// OnError subscribes fn to failed executions.
func (r *Request) OnError(fn func(error)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSubID++
	id := r.nextSubID
	r.onError = append(r.onError, subscriber[error]{id: id, fn: fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.onError = removeSubscriber(r.onError, id)
	}
}

func removeSubscriber[T any](subs []subscriber[T], id int) []subscriber[T] {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Cancel aborts the in-flight attempt or the pending retry wait. It is a
// no-op when nothing is cancellable.
func (r *Request) Cancel() {
	r.abortActive(ErrCancelled)
}

func (r *Request) abortActive(reason error) {
	r.mu.Lock()
	sig := r.active
	r.mu.Unlock()
	if sig != nil {
		sig.Abort(reason)
	}
}

// configure applies fn to the configuration under the lock and returns r.
func (r *Request) configure(fn func(c *Config)) *Request {
	r.mu.Lock()
	fn(&r.config)
	r.mu.Unlock()
	return r
}

// SetMethod sets the HTTP method of subsequent executions.
func (r *Request) SetMethod(method string) *Request {
	return r.configure(func(c *Config) { c.Method = method })
}

// SetBody sets the payload of subsequent executions.
func (r *Request) SetBody(body any) *Request {
	return r.configure(func(c *Config) { c.Body = body })
}

// SetResponseType sets how subsequent responses are decoded. Unknown types
// are ignored.
func (r *Request) SetResponseType(t decode.Type) *Request {
	if !t.Valid() {
		r.log.Warn().Str("response_type", string(t)).Msg("ignoring unsupported response type")
		return r
	}
	return r.configure(func(c *Config) { c.ResponseType = t })
}

// SetParams replaces the query parameters.
func (r *Request) SetParams(params map[string]any) *Request {
	return r.configure(func(c *Config) { c.Params = cloneMap(params) })
}

// SetHeader sets one request header.
func (r *Request) SetHeader(key, value string) *Request {
	return r.configure(func(c *Config) {
		if c.Headers == nil {
			c.Headers = map[string]string{}
		}
		c.Headers[key] = value
	})
}

// SetTimeout sets the per-attempt timeout. Zero disables it.
func (r *Request) SetTimeout(d time.Duration) *Request {
	return r.configure(func(c *Config) { c.Timeout = d })
}

// SetRetry sets the retry policy.
func (r *Request) SetRetry(p RetryPolicy) *Request {
	return r.configure(func(c *Config) { c.Retry = p })
}

// Method shortcuts. Methods that carry a payload take it as an argument.
func (r *Request) Get() *Request    { return r.SetMethod(http.MethodGet) }
func (r *Request) Head() *Request   { return r.SetMethod(http.MethodHead) }
func (r *Request) Delete() *Request { return r.SetMethod(http.MethodDelete) }

func (r *Request) Post(body any) *Request {
	return r.configure(func(c *Config) { c.Method, c.Body = http.MethodPost, body })
}

func (r *Request) Put(body any) *Request {
	return r.configure(func(c *Config) { c.Method, c.Body = http.MethodPut, body })
}

func (r *Request) Patch(body any) *Request {
	return r.configure(func(c *Config) { c.Method, c.Body = http.MethodPatch, body })
}

// Response type shortcuts.
func (r *Request) JSON() *Request        { return r.SetResponseType(decode.JSON) }
func (r *Request) Text() *Request        { return r.SetResponseType(decode.Text) }
func (r *Request) Blob() *Request        { return r.SetResponseType(decode.Blob) }
func (r *Request) ArrayBuffer() *Request { return r.SetResponseType(decode.ArrayBuffer) }
func (r *Request) Document() *Request    { return r.SetResponseType(decode.Document) }
func (r *Request) Form() *Request        { return r.SetResponseType(decode.Form) }

// Execute runs one execution and blocks until it is terminal: succeeded,
// failed after retries, or cancelled. Starting an execution aborts any
// execution still in flight on r.
func (r *Request) Execute(ctx context.Context) Outcome {
	return r.run(ctx)
}
