package paginate

import (
	"context"
	"maps"
	"sync"

	"github.com/gaborage/go-fetch/logger"
	"github.com/gaborage/go-fetch/reactive"
)

// Options configures a Table.
type Options struct {
	// Pagination requests one page at a time. When false the fetcher is
	// asked for every record and no slicing is applied.
	Pagination bool
	PageSize   int
	Filters    map[string]any
	Logger     logger.Logger
}

// State is the observable table state.
type State[T any] struct {
	Rows        []T
	Total       int
	CurrentPage int
	PageSize    int
	// Pages is the number of pages for Total, at least 1.
	Pages   int
	Loading bool
	Err     error
}

// Table keeps listing state and loads pages through a Fetcher. Loads may
// overlap; only the most recently started one updates the state.
type Table[T any] struct {
	fetcher Fetcher[T]
	log     logger.Logger
	state   *reactive.Ref[State[T]]

	mu         sync.Mutex
	pagination bool
	pageSize   int
	page       int
	filters    map[string]any
	gen        uint64
}

// NewTable creates a table positioned on page 1. Nothing is loaded until
// Load is called.
func NewTable[T any](f Fetcher[T], opts Options) *Table[T] {
	size := opts.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	filters := make(map[string]any, len(opts.Filters))
	maps.Copy(filters, opts.Filters)

	return &Table[T]{
		fetcher:    f,
		log:        log,
		state:      reactive.NewRef(State[T]{CurrentPage: 1, PageSize: size, Pages: 1}),
		pagination: opts.Pagination,
		pageSize:   size,
		page:       1,
		filters:    filters,
	}
}

// State returns the current state.
func (t *Table[T]) State() State[T] {
	return t.state.Get()
}

// Watch calls fn after every state change.
func (t *Table[T]) Watch(fn func(State[T])) (stop func()) {
	return t.state.Watch(func(s, _ State[T]) { fn(s) })
}

// Load fetches the current page.
func (t *Table[T]) Load(ctx context.Context) error {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	q := Query{
		Pagination: t.pagination,
		Page:       t.page,
		PageSize:   t.pageSize,
		Filters:    maps.Clone(t.filters),
	}
	if !q.Pagination {
		q.Page = 1
	}
	t.mu.Unlock()

	t.state.Update(func(s State[T]) State[T] {
		s.Loading = true
		s.Err = nil
		return s
	})

	page, err := t.fetcher.Fetch(ctx, q)

	t.mu.Lock()
	stale := gen != t.gen
	t.mu.Unlock()
	if stale {
		t.log.Debug().Int("page", q.Page).Msg("discarding stale page")
		return nil
	}

	if err != nil {
		t.log.Warn().Err(err).Int("page", q.Page).Msg("page load failed")
		t.state.Update(func(s State[T]) State[T] {
			s.Loading = false
			s.Err = err
			return s
		})
		return err
	}

	current := page.CurrentPage
	if current < 1 {
		current = q.Page
	}
	t.state.Set(State[T]{
		Rows:        page.Data,
		Total:       page.Total,
		CurrentPage: current,
		PageSize:    q.PageSize,
		Pages:       pageCount(page.Total, q.PageSize, q.Pagination),
	})
	t.log.Debug().
		Int("page", current).
		Int("rows", len(page.Data)).
		Int("total", page.Total).
		Msg("page loaded")
	return nil
}

// GoTo loads page n, clamped to 1.
func (t *Table[T]) GoTo(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	t.mu.Lock()
	t.page = n
	t.mu.Unlock()
	return t.Load(ctx)
}

// Next loads the following page. It does nothing on the last page.
func (t *Table[T]) Next(ctx context.Context) error {
	s := t.State()
	if s.CurrentPage >= s.Pages {
		return nil
	}
	return t.GoTo(ctx, s.CurrentPage+1)
}

// Prev loads the preceding page. It does nothing on the first page.
func (t *Table[T]) Prev(ctx context.Context) error {
	s := t.State()
	if s.CurrentPage <= 1 {
		return nil
	}
	return t.GoTo(ctx, s.CurrentPage-1)
}

// SetFilter sets or, with a nil value, removes a filter and reloads from
// page 1.
func (t *Table[T]) SetFilter(ctx context.Context, key string, value any) error {
	t.mu.Lock()
	if value == nil {
		delete(t.filters, key)
	} else {
		t.filters[key] = value
	}
	t.page = 1
	t.mu.Unlock()
	return t.Load(ctx)
}

// SetPageSize changes the page size and reloads from page 1.
func (t *Table[T]) SetPageSize(ctx context.Context, size int) error {
	if size <= 0 {
		size = DefaultPageSize
	}
	t.mu.Lock()
	t.pageSize = size
	t.page = 1
	t.mu.Unlock()
	return t.Load(ctx)
}

func pageCount(total, size int, pagination bool) int {
	if !pagination || total <= size {
		return 1
	}
	return (total + size - 1) / size
}
