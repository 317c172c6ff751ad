package pagination

import (
	"context"
	"iter"
)

// FetchFunc loads one page.
type FetchFunc[T any] func(ctx context.Context, req Request) (Page[T], error)

// All walks a paged sequence lazily, fetching the next page only when the consumer
// reaches the end of the current one. Passing a non-empty start cursor resumes a
// previously interrupted walk. A fetch error is yielded once and ends the sequence.
func All[T any](ctx context.Context, limit int, start string, fetch FetchFunc[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		cursor := start
		for {
			page, err := fetch(ctx, Request{Limit: limit, Cursor: cursor})
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
			if page.NextCursor == "" || len(page.Items) == 0 {
				return
			}
			cursor = page.NextCursor
		}
	}
}
