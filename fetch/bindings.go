package fetch

import (
	"context"

	"github.com/gaborage/go-fetch/reactive"
)

// binding is the attachment of a Request to its reactive sources.
type binding struct {
	attached bool
	ctx      context.Context
	cancel   context.CancelFunc
	stops    []func()
	lastURL  string
	// resumeOnReconnect and resumeOnFocus record an execution cut short by
	// going offline or hidden, owed once the source flips back.
	resumeOnReconnect bool
	resumeOnFocus     bool
}

// Attach wires r to its reactive sources according to its ReactivityFlags
// and, with Immediate set, starts a first execution. Executions started by
// bindings run in the background under ctx; Wait blocks until they are done.
// Attaching an attached request is a no-op.
func (r *Request) Attach(ctx context.Context) *Request {
	r.mu.Lock()
	if r.binding.attached {
		r.mu.Unlock()
		return r
	}
	flags := r.config.Reactivity
	bctx, cancel := context.WithCancel(ctx)
	r.binding = binding{attached: true, ctx: bctx, cancel: cancel}
	r.mu.Unlock()

	var stops []func()
	if src, ok := r.source.(RefURL); ok && isSet(flags.Refetch) && isSet(flags.Immediate) {
		r.setLastURL(src.Resolve())
		stops = append(stops, src.Ref.Watch(func(url, _ string) {
			r.onURLChange(url)
		}))
	}
	if r.network != nil && isSet(flags.RefetchOnReconnect) {
		stops = append(stops, r.network.Watch(func(online, _ bool) {
			r.onNetworkChange(online)
		}))
	}
	if r.visibility != nil && (isSet(flags.RefetchOnFocus) || isSet(flags.CancelOnBlur)) {
		stops = append(stops, r.visibility.Watch(func(v, prev reactive.Visibility) {
			if v != prev {
				r.onVisibilityChange(v, flags)
			}
		}))
	}

	r.mu.Lock()
	r.binding.stops = stops
	r.mu.Unlock()

	r.log.Debug().
		Bool("immediate", isSet(flags.Immediate)).
		Int("watchers", len(stops)).
		Msg("request attached")

	if isSet(flags.Immediate) {
		r.trigger("immediate")
	}
	return r
}

// Detach stops every watcher, cancels the execution in flight and releases
// the background context. A detached request can still be executed
// manually or attached again.
func (r *Request) Detach() {
	r.mu.Lock()
	b := r.binding
	r.binding = binding{}
	r.mu.Unlock()
	if !b.attached {
		return
	}

	for _, stop := range b.stops {
		stop()
	}
	r.abortActive(ErrDetached)
	b.cancel()
	r.log.Debug().Msg("request detached")
}

// Wait blocks until every execution started by the bindings has finished.
func (r *Request) Wait() {
	r.bg.Wait()
}

// trigger starts a background execution if r is still attached.
func (r *Request) trigger(reason string) {
	r.mu.Lock()
	if !r.binding.attached {
		r.mu.Unlock()
		return
	}
	ctx := r.binding.ctx
	r.bg.Add(1)
	r.mu.Unlock()

	r.log.Debug().Str("trigger", reason).Msg("re-executing request")
	go func() {
		defer r.bg.Done()
		r.Execute(ctx)
	}()
}

func (r *Request) setLastURL(url string) {
	r.mu.Lock()
	r.binding.lastURL = url
	r.mu.Unlock()
}

// onURLChange re-executes once per distinct URL value.
func (r *Request) onURLChange(url string) {
	r.mu.Lock()
	if url == r.binding.lastURL {
		r.mu.Unlock()
		return
	}
	r.binding.lastURL = url
	r.mu.Unlock()
	r.trigger("url")
}

// onNetworkChange cancels an in-flight execution when going offline and
// re-executes it once back online.
func (r *Request) onNetworkChange(online bool) {
	if !online {
		st := r.State()
		if st.Loading && st.CanCancel {
			r.mu.Lock()
			r.binding.resumeOnReconnect = true
			r.mu.Unlock()
			r.log.Info().Msg("network offline, cancelling request")
			r.Cancel()
		}
		return
	}

	// While the cancelled execution is still settling the resume stays owed;
	// resumeOwed fires it once that execution ends.
	r.mu.Lock()
	fire := r.binding.resumeOnReconnect && !r.state.Loading
	if fire {
		r.binding.resumeOnReconnect = false
	}
	r.mu.Unlock()
	if fire {
		r.trigger("reconnect")
	}
}

// onVisibilityChange cancels on blur and re-executes on a transition to
// visible.
func (r *Request) onVisibilityChange(v reactive.Visibility, flags ReactivityFlags) {
	if v == reactive.Hidden {
		if !isSet(flags.CancelOnBlur) {
			return
		}
		if r.State().CanCancel {
			r.mu.Lock()
			r.binding.resumeOnFocus = true
			r.mu.Unlock()
			r.log.Info().Msg("request hidden, cancelling")
			r.Cancel()
		}
		return
	}

	r.mu.Lock()
	owed := r.binding.resumeOnFocus
	r.binding.resumeOnFocus = false
	r.mu.Unlock()
	if isSet(flags.RefetchOnFocus) || owed {
		r.trigger("focus")
	}
}

// resumeOwed runs after an execution settles as cancelled. A reconnect that
// arrived while it was still settling is fired now. Callers must not hold
// r.mu.
func (r *Request) resumeOwed() {
	r.mu.Lock()
	fire := r.binding.resumeOnReconnect && r.network != nil && r.network.Get()
	if fire {
		r.binding.resumeOnReconnect = false
	}
	r.mu.Unlock()
	if fire {
		r.trigger("reconnect")
	}
}
