// Package pagination holds the page arithmetic shared by list operations.
//
// Page numbers are 1-based. An empty result still has one (empty) page, so
// page 1 is always valid; any other page past the end is rejected.
package pagination

import (
	"errors"
	"fmt"
)

var ErrInvalidPage = errors.New("invalid page")

// Params is a validated page request.
type Params struct {
	Number int
	Size   int
}

// NewParams validates the requested page number.
func NewParams(number, size int) (Params, error) {
	if size < 1 {
		return Params{}, fmt.Errorf("page size %d: %w", size, ErrInvalidPage)
	}
	if number < 1 {
		return Params{}, fmt.Errorf("page %d: %w", number, ErrInvalidPage)
	}
	return Params{Number: number, Size: size}, nil
}

func (p Params) Offset() int {
	return (p.Number - 1) * p.Size
}

func (p Params) Limit() int {
	return p.Size
}

// Check rejects page numbers beyond the last page for the given total.
func (p Params) Check(total int64) error {
	if p.Number > 1 && p.Number > NumPages(total, p.Size) {
		return fmt.Errorf("page %d of %d: %w", p.Number, NumPages(total, p.Size), ErrInvalidPage)
	}
	return nil
}

// NumPages returns the number of pages needed for total items, never less than one.
func NumPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}

// Page is one slice of an ordered result set.
type Page[T any] struct {
	Items       []T   `json:"items"`
	Number      int   `json:"page"`
	Size        int   `json:"page_size"`
	Total       int64 `json:"total"`
	NumPages    int   `json:"num_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

func NewPage[T any](items []T, p Params, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	numPages := NumPages(total, p.Size)
	return Page[T]{
		Items:       items,
		Number:      p.Number,
		Size:        p.Size,
		Total:       total,
		NumPages:    numPages,
		HasNext:     p.Number < numPages,
		HasPrevious: p.Number > 1,
	}
}

// HasOtherPages reports whether the result spans more than one page.
func (p Page[T]) HasOtherPages() bool {
	return p.NumPages > 1
}

func (p Page[T]) NextNumber() int {
	return p.Number + 1
}

func (p Page[T]) PreviousNumber() int {
	return p.Number - 1
}
