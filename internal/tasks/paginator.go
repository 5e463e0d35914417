package tasks

import (
	"context"
	"fmt"
	"iter"

	"github.com/desertthunder/spotexport/internal/services"
	"github.com/desertthunder/spotexport/internal/shared"
)

// PageFunc fetches the page of size limit starting at offset.
type PageFunc[T any] func(ctx context.Context, limit, offset int) (*services.Page[T], error)

// Paginator walks an offset-paginated listing from offset 0 until the first empty page.
//
// Offsets advance by the requested limit, never by the returned item count, and
// the page's Total and Next fields are ignored. A Paginator is single-use.
type Paginator[T any] struct {
	fetch   PageFunc[T]
	limit   int
	offset  int
	calls   int
	started bool
}

// NewPaginator returns a Paginator over fetch with the given page size.
func NewPaginator[T any](fetch PageFunc[T], limit int) (*Paginator[T], error) {
	if fetch == nil {
		return nil, fmt.Errorf("%w: nil page func", shared.ErrInvalidArgument)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: page size must be positive, got %d", shared.ErrInvalidArgument, limit)
	}
	return &Paginator[T]{fetch: fetch, limit: limit}, nil
}

// Offset returns the offset of the next page to request.
func (p *Paginator[T]) Offset() int { return p.offset }

// Calls returns how many times the page func was invoked.
func (p *Paginator[T]) Calls() int { return p.calls }

// Pages yields each non-empty page in order.
//
// The sequence ends after the first empty page, which is not yielded. A fetch error is
// yielded once with a nil page and ends the sequence. Ranging a second time yields nothing.
func (p *Paginator[T]) Pages(ctx context.Context) iter.Seq2[*services.Page[T], error] {
	return func(yield func(*services.Page[T], error) bool) {
		if p.started {
			return
		}
		p.started = true

		for {
			page, err := p.fetch(ctx, p.limit, p.offset)
			p.calls++
			if err != nil {
				yield(nil, err)
				return
			}
			if page == nil {
				yield(nil, fmt.Errorf("%w: nil page at offset %d", shared.ErrUnexpected, p.offset))
				return
			}
			if len(page.Items) == 0 {
				return
			}

			p.offset += p.limit
			if !yield(page, nil) {
				return
			}
		}
	}
}

// Items yields every item of every page in page order, then within-page order.
// A fetch error is yielded once with the zero item and ends the sequence.
func (p *Paginator[T]) Items(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page, err := range p.Pages(ctx) {
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
		}
	}
}
