package fetch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gaborage/go-fetch/abort"
	"github.com/gaborage/go-fetch/decode"
	"github.com/gaborage/go-fetch/observability"
	"github.com/gaborage/go-fetch/retry"
	"github.com/gaborage/go-fetch/transport"
)

// attemptScope is the per-attempt cancellation state.
type attemptScope struct {
	number  int
	config  Config
	signal  *abort.Signal
	timeout *abort.Signal
}

// attemptResult is what one attempt produced, successful or not.
type attemptResult struct {
	url  string
	resp *transport.Response
	data any
}

func (a attemptResult) statusCode() int {
	if a.resp == nil {
		return 0
	}
	return a.resp.StatusCode
}

func (r *Request) run(ctx context.Context) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	gen, method := r.begin()

	ctx, span := r.inst.StartExecution(ctx, method)
	start := time.Now()
	out := r.execute(ctx, gen, false)

	outcome := observability.OutcomeSuccess
	switch {
	case out.Cancelled:
		outcome = observability.OutcomeCancelled
	case out.Err != nil:
		outcome = observability.OutcomeFailure
	}
	r.inst.EndExecution(ctx, span, method, outcome, out.Err, time.Since(start))
	return out
}

// begin opens a new generation. Anything still running under an older one is
// aborted and can no longer touch the state.
func (r *Request) begin() (uint64, string) {
	r.mu.Lock()
	r.generation++
	gen := r.generation
	prev := r.active
	r.active = nil
	r.attempt = 0
	r.state.Err = nil
	r.state.Cancelled = false
	r.state.Loading = true
	r.state.Finished = false
	r.state.CanCancel = false
	method := r.config.method()
	snap := r.state
	r.mu.Unlock()

	if prev != nil {
		prev.Abort(ErrSuperseded)
	}
	r.publish(snap)
	return gen, method
}

// execute runs one attempt of generation gen and, on a retryable failure,
// waits and recurses.
func (r *Request) execute(ctx context.Context, gen uint64, isRetry bool) Outcome {
	scope, ok := r.startAttempt(gen)
	if !ok {
		return Outcome{Cancelled: true}
	}
	method := scope.config.method()

	r.log.Debug().
		Str("method", method).
		Int("attempt", scope.number).
		Bool("retry", isRetry).
		Msg("executing request")

	res, err := r.attemptOnce(ctx, scope)
	r.endAttempt(gen, scope.signal)
	if scope.timeout != nil {
		scope.timeout.Stop()
	}

	if err == nil {
		return r.succeed(gen, scope.config, res)
	}
	if cancelled, reason := cancellation(ctx, scope.signal); cancelled {
		return r.cancelled(gen, reason)
	}
	if errors.Is(scope.signal.Reason(), abort.ErrTimeout) && !transport.IsErrorType(err, transport.TimeoutError) {
		err = transport.NewTimeoutError("request timed out", scope.config.Timeout, err)
	}

	policy := scope.config.Retry
	if !retry.ShouldRetry(err, isSet(policy.Enabled), scope.number, policy.Count, false) {
		return r.fail(ctx, gen, scope.config, res, err)
	}

	next, ok := r.scheduleRetry(gen)
	if !ok {
		return Outcome{Cancelled: true}
	}
	delay := policy.delay(next)
	kind := retry.Classify(err)
	r.log.Warn().
		Err(err).
		Str("method", method).
		Str("url", res.url).
		Str("kind", kind.String()).
		Int("retry", next).
		Dur("delay", delay).
		Msg("retrying request")
	r.inst.RecordRetry(ctx, method, kind.String(), delay)

	if delay > 0 && !r.wait(ctx, gen, delay) {
		return r.cancelled(gen, ErrCancelled)
	}
	return r.execute(ctx, gen, true)
}

// cancellation reports whether the attempt ended because someone gave up on
// it, as opposed to timing out or failing.
func cancellation(ctx context.Context, sig *abort.Signal) (bool, error) {
	if reason := sig.Reason(); reason != nil && !errors.Is(reason, abort.ErrTimeout) {
		return true, reason
	}
	if ctx.Err() != nil {
		return true, context.Cause(ctx)
	}
	return false, nil
}

func (r *Request) startAttempt(gen uint64) (*attemptScope, bool) {
	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		return nil, false
	}
	scope := &attemptScope{
		number: r.attempt + 1,
		config: cloneConfig(r.config),
		signal: abort.New(),
	}
	r.active = scope.signal
	r.state.CanCancel = true
	snap := r.state
	r.mu.Unlock()

	if scope.config.Timeout > 0 {
		scope.timeout = abort.Timeout(scope.config.Timeout)
		abort.Link(scope.timeout, scope.signal)
	}
	r.publish(snap)
	return scope, true
}

func (r *Request) endAttempt(gen uint64, sig *abort.Signal) {
	r.mu.Lock()
	if r.active == sig {
		r.active = nil
	}
	if r.generation != gen {
		r.mu.Unlock()
		return
	}
	r.state.CanCancel = false
	snap := r.state
	r.mu.Unlock()
	r.publish(snap)
}

func (r *Request) scheduleRetry(gen uint64) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != gen {
		return 0, false
	}
	r.attempt++
	return r.attempt, true
}

// wait sleeps for d between attempts. The wait is cancellable like an
// attempt; it reports false if it was cut short.
func (r *Request) wait(ctx context.Context, gen uint64, d time.Duration) bool {
	sig := abort.New()
	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		return false
	}
	r.active = sig
	r.state.CanCancel = true
	snap := r.state
	r.mu.Unlock()
	r.publish(snap)

	timer := time.NewTimer(d)
	defer timer.Stop()

	completed := false
	select {
	case <-timer.C:
		completed = true
	case <-sig.Done():
	case <-ctx.Done():
	}
	r.endAttempt(gen, sig)
	return completed
}

// attemptOnce builds the outgoing request, runs the interceptors around one
// transport call and decodes the response.
func (r *Request) attemptOnce(ctx context.Context, scope *attemptScope) (attemptResult, error) {
	var res attemptResult
	cfg := &scope.config
	sig := scope.signal
	ctx = context.WithValue(ctx, attemptKey, scope.number)

	target, err := resolveURL(cfg.BaseURL, r.source.Resolve())
	if err != nil {
		return res, err
	}
	if isReadMethod(cfg.method()) {
		if target, err = mergeParams(target, cfg.Params); err != nil {
			return res, err
		}
	}
	res.url = target

	before := &BeforeFetchContext{
		URL:    target,
		Config: cfg,
		Cancel: func() { sig.Abort(ErrCancelled) },
	}
	paramsBefore := cloneMap(cfg.Params)
	if err := runBeforeFetch(ctx, cfg.Interceptors.BeforeFetch, before); err != nil {
		return res, err
	}
	if sig.Aborted() {
		return res, sig.Reason()
	}
	target = before.URL
	method := cfg.method()
	if isReadMethod(method) && paramsReplaced(paramsBefore, cfg.Params) {
		if target, err = mergeParams(stripQuery(target), cfg.Params); err != nil {
			return res, err
		}
	}
	res.url = target

	req, err := buildTransportRequest(target, method, *cfg)
	if err != nil {
		return res, err
	}

	callCtx, release := sig.Context(ctx)
	resp, err := r.transport.Do(callCtx, req)
	release()
	res.resp = resp
	r.inst.RecordAttempt(ctx, method, target, scope.number, res.statusCode())

	if err != nil {
		return res, err
	}
	if reason := sig.Reason(); reason != nil && !errors.Is(reason, abort.ErrTimeout) {
		return res, reason
	}
	if resp == nil {
		return res, transport.NewNetworkError("transport returned no response", transport.CodeNetwork, nil, nil)
	}

	r.log.Debug().
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Elapsed).
		Msg("response received")

	data, decodeErr := decode.Decode(resp.Raw(), cfg.responseType())
	if !resp.OK() {
		if decodeErr == nil {
			res.data = data
		}
		return res, transport.NewHTTPError(statusMessage(resp), resp)
	}
	if decodeErr != nil {
		return res, transport.NewNetworkError("failed to decode response body", transport.CodeBadResponseBody, resp, decodeErr)
	}

	data, err = runAfterFetch(ctx, cfg.Interceptors.AfterFetch, &AfterFetchContext{
		URL:      target,
		Data:     data,
		Response: resp,
		Config:   cfg,
	})
	if err != nil {
		return res, err
	}
	if reason := sig.Reason(); reason != nil && !errors.Is(reason, abort.ErrTimeout) {
		return res, reason
	}
	res.data = data
	return res, nil
}

func buildTransportRequest(target, method string, cfg Config) (*transport.Request, error) {
	header := make(http.Header, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		header.Set(k, v)
	}

	req := &transport.Request{
		URL:          target,
		Method:       method,
		Header:       header,
		ResponseType: decode.TransportType(cfg.responseType()),
	}
	if bodyless(method) {
		return req, nil
	}

	body, err := encodeBody(cfg)
	if err != nil {
		return nil, err
	}
	switch {
	case body.form != nil:
		header.Del("Content-Type")
		req.Form = body.form
	case body.contentType != "" && header.Get("Content-Type") == "":
		header.Set("Content-Type", body.contentType)
		req.Body = body.data
	default:
		req.Body = body.data
	}
	return req, nil
}

func paramsReplaced(before, after map[string]any) bool {
	if len(after) == 0 {
		return false
	}
	if len(before) != len(after) {
		return true
	}
	for k, v := range after {
		if prev, ok := before[k]; !ok || formatValue(prev) != formatValue(v) {
			return true
		}
	}
	return false
}

func statusMessage(resp *transport.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return "unexpected status"
}

func (r *Request) succeed(gen uint64, cfg Config, res attemptResult) Outcome {
	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		return Outcome{Cancelled: true}
	}
	r.state.Data = res.data
	r.state.StatusCode = res.statusCode()
	r.state.Err = nil
	observers := append([]subscriber[ResponseEvent](nil), r.onResponse...)
	snap := r.state
	r.mu.Unlock()
	r.publish(snap)

	event := ResponseEvent{Data: res.data, Response: res.resp}
	for _, o := range observers {
		r.notifyObserver(func() { o.fn(event) })
	}
	r.finish(gen)

	r.log.Info().
		Str("method", cfg.method()).
		Str("url", res.url).
		Int("status", res.statusCode()).
		Msg("request succeeded")
	return Outcome{Data: res.data, StatusCode: res.statusCode()}
}

func (r *Request) fail(ctx context.Context, gen uint64, cfg Config, res attemptResult, err error) Outcome {
	status := res.statusCode()

	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		return Outcome{Cancelled: true}
	}
	r.state.Err = err
	if status != 0 {
		r.state.StatusCode = status
	}
	snap := r.state
	r.mu.Unlock()
	r.publish(snap)

	result, panicErr := runOnFetchError(ctx, cfg.Interceptors.OnFetchError, &ErrorContext{
		URL:      res.url,
		Err:      err,
		Data:     res.data,
		Response: res.resp,
		Config:   &cfg,
	})
	if panicErr != nil {
		r.log.Warn().Err(panicErr).Msg("error interceptor failed, keeping original error")
	}

	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		return Outcome{Cancelled: true}
	}
	if result != nil {
		if result.Err != nil {
			err = result.Err
		}
		if isSet(cfg.UpdateDataOnError) && result.Data != nil {
			r.state.Data = result.Data
		}
	}
	r.state.Err = err
	data := r.state.Data
	observers := append([]subscriber[error](nil), r.onError...)
	snap = r.state
	r.mu.Unlock()
	r.publish(snap)

	for _, o := range observers {
		r.notifyObserver(func() { o.fn(err) })
	}
	r.finish(gen)

	r.log.Error().
		Err(err).
		Str("method", cfg.method()).
		Str("url", res.url).
		Int("status", status).
		Msg("request failed")
	return Outcome{Data: data, Err: err, StatusCode: status}
}

func (r *Request) cancelled(gen uint64, reason error) Outcome {
	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		return Outcome{Cancelled: true}
	}
	r.state.Cancelled = true
	r.state.Loading = false
	r.state.Finished = true
	r.state.CanCancel = false
	snap := r.state
	r.mu.Unlock()
	r.publish(snap)

	r.log.Info().
		Str("reason", errorString(reason)).
		Msg("request cancelled")
	r.resumeOwed()
	return Outcome{Data: snap.Data, StatusCode: snap.StatusCode, Cancelled: true}
}

func (r *Request) finish(gen uint64) {
	r.mu.Lock()
	if r.generation != gen {
		r.mu.Unlock()
		return
	}
	r.state.Loading = false
	r.state.Finished = true
	r.state.CanCancel = false
	snap := r.state
	r.mu.Unlock()
	r.publish(snap)
}

func (r *Request) publish(s State) {
	r.notify.Set(s)
}

// notifyObserver runs one observer callback, isolating the engine from its
// panics.
func (r *Request) notifyObserver(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Interface("panic", p).Msg("observer callback panicked")
		}
	}()
	fn()
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
