package paginate

import (
	"context"
	"fmt"
	"maps"

	"github.com/bytedance/sonic"

	"github.com/gaborage/go-fetch/fetch"
	"github.com/gaborage/go-fetch/internal/pathwalk"
)

// Mapping locates the page fields in a decoded response body and names the
// query parameters sent for paging. Paths are dotted ("data.items.0").
type Mapping struct {
	// DataPath is the record list. Empty means the body itself.
	DataPath string
	// TotalPath is the total record count. Empty means the number of
	// records returned.
	TotalPath string
	// PagePath is the page the server answered. Empty means the page asked
	// for.
	PagePath string

	PageParam string
	SizeParam string
}

func (m Mapping) withDefaults() Mapping {
	if m.PageParam == "" {
		m.PageParam = "page"
	}
	if m.SizeParam == "" {
		m.SizeParam = "per_page"
	}
	return m
}

// FromEngine adapts req into a Fetcher. Filters and, with pagination, the
// page parameters are merged over the params req was configured with; each
// Fetch runs one execution of req.
func FromEngine[T any](req *fetch.Request, m Mapping) Fetcher[T] {
	m = m.withDefaults()
	base := req.Config().Params

	return FetcherFunc[T](func(ctx context.Context, q Query) (Page[T], error) {
		params := make(map[string]any, len(base)+len(q.Filters)+2)
		maps.Copy(params, base)
		maps.Copy(params, q.Filters)
		if q.Pagination {
			params[m.PageParam] = q.Page
			params[m.SizeParam] = q.PageSize
		}
		req.SetParams(params)

		out := req.Execute(ctx)
		switch {
		case out.Cancelled:
			if err := ctx.Err(); err != nil {
				return Page[T]{}, fmt.Errorf("%w: %w", ErrCancelled, err)
			}
			return Page[T]{}, ErrCancelled
		case out.Err != nil:
			return Page[T]{}, out.Err
		}

		return extract[T](out.Data, m, q)
	})
}

func extract[T any](body any, m Mapping, q Query) (Page[T], error) {
	items, ok := pathwalk.Slice(body, m.DataPath)
	if !ok {
		return Page[T]{}, fmt.Errorf("paginate: no record list at %q", m.DataPath)
	}

	rows := make([]T, 0, len(items))
	for i, item := range items {
		row, err := convert[T](item)
		if err != nil {
			return Page[T]{}, fmt.Errorf("paginate: record %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	page := Page[T]{Data: rows, Total: len(rows), CurrentPage: 1}
	if q.Pagination {
		page.CurrentPage = q.Page
	}
	if m.TotalPath != "" {
		if total, ok := pathwalk.Int(body, m.TotalPath); ok {
			page.Total = total
		}
	}
	if m.PagePath != "" && q.Pagination {
		if current, ok := pathwalk.Int(body, m.PagePath); ok {
			page.CurrentPage = current
		}
	}
	return page, nil
}

// convert turns a decoded JSON value into T, re-encoding it when T is a
// concrete type.
func convert[T any](item any) (T, error) {
	if v, ok := item.(T); ok {
		return v, nil
	}
	var out T
	raw, err := sonic.Marshal(item)
	if err != nil {
		return out, err
	}
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
