package engine

import "context"

// Handle is the surface shared by both engine variants.
//
// A handle is owned by exactly one caller. Free must be called once; any
// call after Free returns an error matching errors.ErrReleased.
type Handle interface {
	// CalcRange returns the [start, end) window for a viewport of extent
	// viewport at virtual offset scroll, widened by overscan on each side.
	CalcRange(scroll, viewport float64, overscan int) (start, end int, err error)

	// OffsetOf returns the virtual offset of index. OffsetOf(Count()) is the
	// total content size.
	OffsetOf(index int) (float64, error)

	// Count returns the number of items the handle indexes.
	Count() int

	// Free releases the native resource behind the handle.
	Free(ctx context.Context) error
}

// Uniform indexes items that all share one size. Lookups are O(1).
type Uniform interface {
	Handle

	// SetCount changes the item count in place.
	SetCount(count int) error

	// ItemSize returns the shared item size.
	ItemSize() float64
}

// Variable indexes items with individual sizes. Lookups are O(log n).
type Variable interface {
	Handle

	// SizeOf returns the size of the item at index.
	SizeOf(index int) (float64, error)
}
