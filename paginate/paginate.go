// Package paginate is a paged-listing consumer. It keeps table state (rows,
// total, current page, filters) and loads pages through a caller-supplied
// Fetcher. A Fetcher may be built on the fetch engine with FromEngine, or on
// anything else; paginate adds no retry or cancellation logic of its own.
package paginate

import (
	"context"
	"errors"
)

// DefaultPageSize is used when Options.PageSize is not positive.
const DefaultPageSize = 10

// ErrCancelled is returned by FromEngine fetchers whose execution was
// cancelled.
var ErrCancelled = errors.New("paginate: fetch cancelled")

// Query describes the page a Fetcher is asked for.
type Query struct {
	// Pagination is false when every record is wanted in one page.
	Pagination bool
	// Page is 1-based. Ignored without pagination.
	Page     int
	PageSize int
	Filters  map[string]any
}

// Page is the result shape consumed by Table.
type Page[T any] struct {
	Data        []T
	Total       int
	CurrentPage int
}

// Fetcher supplies one page of records.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, q Query) (Page[T], error)
}

// FetcherFunc adapts a function into a Fetcher.
type FetcherFunc[T any] func(ctx context.Context, q Query) (Page[T], error)

// Fetch calls f.
func (f FetcherFunc[T]) Fetch(ctx context.Context, q Query) (Page[T], error) { return f(ctx, q) }

// Slice pages through an in-memory record set. Without pagination every
// record is returned unsliced.
func Slice[T any](records []T, q Query) Page[T] {
	if !q.Pagination {
		return Page[T]{Data: records, Total: len(records), CurrentPage: 1}
	}

	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	start := (page - 1) * size
	if start > len(records) {
		start = len(records)
	}
	end := start + size
	if end > len(records) {
		end = len(records)
	}
	return Page[T]{Data: records[start:end], Total: len(records), CurrentPage: page}
}

// FromSlice serves records from memory. match, when non-nil, filters them
// with the query's filters before paging.
func FromSlice[T any](records []T, match func(record T, filters map[string]any) bool) Fetcher[T] {
	return FetcherFunc[T](func(_ context.Context, q Query) (Page[T], error) {
		selected := records
		if match != nil && len(q.Filters) > 0 {
			selected = make([]T, 0, len(records))
			for _, r := range records {
				if match(r, q.Filters) {
					selected = append(selected, r)
				}
			}
		}
		return Slice(selected, q), nil
	})
}
