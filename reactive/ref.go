// Package reactive provides observable values and the environment sources
// (network reachability, visibility) that drive re-execution of requests.
package reactive

import (
	"sync"
)

// Ref is an observable value. Watchers run synchronously, in registration
// order, on the goroutine that called Set.
type Ref[T any] struct {
	mu       sync.Mutex
	value    T
	nextID   int
	watchers []watcher[T]
}

type watcher[T any] struct {
	id int
	fn func(value, previous T)
}

// NewRef creates a Ref holding initial.
func NewRef[T any](initial T) *Ref[T] {
	return &Ref[T]{value: initial}
}

// Get returns the current value.
func (r *Ref[T]) Get() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Set stores v and notifies every watcher.
func (r *Ref[T]) Set(v T) {
	r.mu.Lock()
	prev := r.value
	r.value = v
	watchers := append([]watcher[T](nil), r.watchers...)
	r.mu.Unlock()

	for _, w := range watchers {
		w.fn(v, prev)
	}
}

// Update applies fn to the current value under the lock, then notifies
// watchers with the result.
func (r *Ref[T]) Update(fn func(T) T) T {
	r.mu.Lock()
	prev := r.value
	r.value = fn(prev)
	next := r.value
	watchers := append([]watcher[T](nil), r.watchers...)
	r.mu.Unlock()

	for _, w := range watchers {
		w.fn(next, prev)
	}
	return next
}

// Watch registers fn and returns a function that unregisters it.
func (r *Ref[T]) Watch(fn func(value, previous T)) (stop func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.watchers = append(r.watchers, watcher[T]{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, w := range r.watchers {
				if w.id == id {
					r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
					return
				}
			}
		})
	}
}

// Watchers returns the number of registered watchers.
func (r *Ref[T]) Watchers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watchers)
}
