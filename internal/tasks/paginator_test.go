package tasks

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/desertthunder/spotexport/internal/services"
	"github.com/desertthunder/spotexport/internal/shared"
)

// sliceFetch serves items like an offset-paginated endpoint and records the requested offsets.
func sliceFetch(items []int, offsets *[]int) PageFunc[int] {
	return func(ctx context.Context, limit, offset int) (*services.Page[int], error) {
		*offsets = append(*offsets, offset)
		p := &services.Page[int]{Total: len(items), Limit: limit, Offset: offset, Items: []int{}}
		if offset < len(items) {
			p.Items = items[offset:min(offset+limit, len(items))]
		}
		return p, nil
	}
}

func seq(n int) []int {
	items := make([]int, n)
	for i := range n {
		items[i] = i
	}
	return items
}

func TestPaginator(t *testing.T) {
	t.Run("NewPaginator", func(t *testing.T) {
		tt := []struct {
			name  string
			fetch PageFunc[int]
			limit int
		}{
			{name: "nil fetch", fetch: nil, limit: 10},
			{name: "zero limit", fetch: sliceFetch(nil, new([]int)), limit: 0},
			{name: "negative limit", fetch: sliceFetch(nil, new([]int)), limit: -5},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				if _, err := NewPaginator[int](tc.fetch, tc.limit); !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
			})
		}
	})

	t.Run("Call Counts", func(t *testing.T) {
		tt := []struct {
			name  string
			items int
			limit int
			calls int
		}{
			{name: "empty listing", items: 0, limit: 50, calls: 1},
			{name: "single partial page", items: 3, limit: 50, calls: 2},
			{name: "exact multiple", items: 100, limit: 50, calls: 3},
			{name: "partial last page", items: 120, limit: 50, calls: 4},
			{name: "limit of one", items: 7, limit: 1, calls: 8},
			{name: "limit of one hundred", items: 250, limit: 100, calls: 4},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				var offsets []int
				pager, err := NewPaginator[int](sliceFetch(seq(tc.items), &offsets), tc.limit)
				if err != nil {
					t.Fatalf("NewPaginator() error = %v", err)
				}

				var got []int
				for item, err := range pager.Items(context.Background()) {
					if err != nil {
						t.Fatalf("unexpected error: %v", err)
					}
					got = append(got, item)
				}

				if !slices.Equal(got, seq(tc.items)) {
					t.Errorf("items = %v, want 0..%d in order", got, tc.items-1)
				}
				if pager.Calls() != tc.calls {
					t.Errorf("Calls() = %d, want %d", pager.Calls(), tc.calls)
				}
				for i, off := range offsets {
					if off != i*tc.limit {
						t.Errorf("request %d used offset %d, want %d", i, off, i*tc.limit)
					}
				}
			})
		}
	})

	t.Run("advances by limit not item count", func(t *testing.T) {
		var offsets []int
		short := func(ctx context.Context, limit, offset int) (*services.Page[int], error) {
			offsets = append(offsets, offset)
			if offset >= 30 {
				return &services.Page[int]{}, nil
			}
			// Server returns fewer items than requested on every page.
			return &services.Page[int]{Items: []int{offset, offset + 1}}, nil
		}

		pager, _ := NewPaginator[int](short, 10)
		var pages int
		for _, err := range pager.Pages(context.Background()) {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			pages++
		}

		if pages != 3 {
			t.Errorf("expected 3 pages, got %d", pages)
		}
		if want := []int{0, 10, 20, 30}; !slices.Equal(offsets, want) {
			t.Errorf("offsets = %v, want %v", offsets, want)
		}
		if pager.Offset() != 30 {
			t.Errorf("Offset() = %d, want 30", pager.Offset())
		}
	})

	t.Run("ignores total and next", func(t *testing.T) {
		var offsets []int
		lying := func(ctx context.Context, limit, offset int) (*services.Page[int], error) {
			offsets = append(offsets, offset)
			if offset >= 20 {
				return &services.Page[int]{Total: 5}, nil
			}
			return &services.Page[int]{Total: 5, Items: seq(limit)}, nil
		}

		pager, _ := NewPaginator[int](lying, 10)
		var n int
		for _, err := range pager.Items(context.Background()) {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			n++
		}
		if n != 20 {
			t.Errorf("expected 20 items despite Total=5, got %d", n)
		}
	})

	t.Run("error is yielded once", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		failing := func(ctx context.Context, limit, offset int) (*services.Page[int], error) {
			calls++
			if offset == 10 {
				return nil, boom
			}
			return &services.Page[int]{Items: seq(limit)}, nil
		}

		pager, _ := NewPaginator[int](failing, 10)
		var errs []error
		var items int
		for _, err := range pager.Items(context.Background()) {
			if err != nil {
				errs = append(errs, err)
				continue
			}
			items++
		}

		if len(errs) != 1 || !errors.Is(errs[0], boom) {
			t.Errorf("expected a single boom error, got %v", errs)
		}
		if items != 10 {
			t.Errorf("expected 10 items before the error, got %d", items)
		}
		if calls != 2 {
			t.Errorf("expected fetching to stop after the error, got %d calls", calls)
		}
	})

	t.Run("nil page", func(t *testing.T) {
		nilPage := func(ctx context.Context, limit, offset int) (*services.Page[int], error) {
			return nil, nil
		}

		pager, _ := NewPaginator[int](nilPage, 10)
		for _, err := range pager.Pages(context.Background()) {
			if !errors.Is(err, shared.ErrUnexpected) {
				t.Errorf("expected ErrUnexpected, got %v", err)
			}
		}
	})

	t.Run("single use", func(t *testing.T) {
		var offsets []int
		pager, _ := NewPaginator[int](sliceFetch(seq(5), &offsets), 2)

		for range pager.Items(context.Background()) {
		}
		first := pager.Calls()

		for range pager.Items(context.Background()) {
			t.Error("second range should yield nothing")
		}
		if pager.Calls() != first {
			t.Errorf("second range made %d extra calls", pager.Calls()-first)
		}
	})

	t.Run("early break stops fetching", func(t *testing.T) {
		var offsets []int
		pager, _ := NewPaginator[int](sliceFetch(seq(100), &offsets), 10)

		for item := range pager.Items(context.Background()) {
			if item == 4 {
				break
			}
		}
		if pager.Calls() != 1 {
			t.Errorf("expected 1 call, got %d", pager.Calls())
		}
	})
}
