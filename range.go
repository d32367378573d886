package vrange

import "math"

const (
	// MaxSafeScrollHeight is the largest scrollable extent the controller
	// will ever ask a scroll element to represent. Content taller than this
	// is compressed with a scroll multiplier.
	MaxSafeScrollHeight = 15_000_000

	// UniformSampleSize is how many leading items are sampled to decide
	// between the uniform and the variable engine path.
	UniformSampleSize = 10

	// SkipThreshold is the padding delta, in DOM units, below which an
	// unchanged [start, end) window is not republished.
	SkipThreshold = 0.5

	// DefaultOverscan is the number of extra items kept on each side of
	// the viewport.
	DefaultOverscan = 3
)

// Axis selects the scroll direction the controller reads and writes.
type Axis uint8

const (
	AxisVertical Axis = iota
	AxisHorizontal
)

func (a Axis) String() string {
	if a == AxisHorizontal {
		return "horizontal"
	}
	return "vertical"
}

// Behavior is how a scroll-positioning request moves the element.
type Behavior uint8

const (
	BehaviorInstant Behavior = iota
	BehaviorSmooth
)

func (b Behavior) String() string {
	if b == BehaviorSmooth {
		return "smooth"
	}
	return "instant"
}

// VirtualRange is an immutable snapshot of the visible window.
//
// Items, Offsets and Sizes have length EndIndex-StartIndex. Offsets are
// relative to the first visible item and, like Sizes, in virtual units.
// TotalHeight and PaddingTop are in DOM units (already divided by the
// scroll multiplier). A new value is built for every accepted recompute, so
// pointer identity tells a consumer whether anything changed.
type VirtualRange struct {
	Items       []int
	Offsets     []float64
	Sizes       []float64
	StartIndex  int
	EndIndex    int
	TotalHeight float64
	PaddingTop  float64
}

// Len returns the number of items in the window.
func (r *VirtualRange) Len() int {
	if r == nil {
		return 0
	}
	return r.EndIndex - r.StartIndex
}

// Contains reports whether index is inside [StartIndex, EndIndex).
func (r *VirtualRange) Contains(index int) bool {
	return r != nil && index >= r.StartIndex && index < r.EndIndex
}

// EmptyRange is the range published for a list with no items.
func EmptyRange() *VirtualRange {
	return &VirtualRange{
		Items:   []int{},
		Offsets: []float64{},
		Sizes:   []float64{},
	}
}

// ScrollMultiplier maps a virtual content height onto the safe scroll
// extent. It is 1 unless the content exceeds MaxSafeScrollHeight.
func ScrollMultiplier(virtualTotal float64) float64 {
	if virtualTotal > MaxSafeScrollHeight {
		return virtualTotal / MaxSafeScrollHeight
	}
	return 1
}

// ToVirtual converts a DOM offset into virtual content coordinates.
func ToVirtual(domOffset, multiplier float64) float64 {
	return domOffset * multiplier
}

// ToDOM converts a virtual content offset into DOM coordinates.
func ToDOM(virtualOffset, multiplier float64) float64 {
	return virtualOffset / multiplier
}

// ClampHeight caps a DOM height at MaxSafeScrollHeight.
func ClampHeight(h float64) float64 {
	return math.Min(h, MaxSafeScrollHeight)
}
