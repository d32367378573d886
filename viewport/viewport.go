// Package viewport provides an in-memory scrollable element.
//
// A Viewport keeps a scroll position and a visible extent per axis and
// reports every position change to its scroll listeners. Smooth scrolls
// are animated over SmoothFrames frames of a frame.Source with an ease-out
// curve, reporting each intermediate position.
package viewport

import (
	"math"

	"github.com/wippyai/vrange"
	"github.com/wippyai/vrange/frame"
)

// SmoothFrames is the length of a smooth scroll animation.
const SmoothFrames = 8

type listener struct {
	fn func()
	id uint64
}

type animation struct {
	from, to float64
	step     int
	id       frame.ID
	axis     vrange.Axis
}

// Viewport is a scrollable element. It is not safe for concurrent use.
type Viewport struct {
	frames    frame.Source
	anim      *animation
	listeners []listener
	position  [2]float64
	extent    [2]float64
	content   [2]float64
	next      uint64
	scrolls   int
}

// New creates a viewport with the given vertical extent. frames drives
// smooth scrolling and may be nil, in which case every scroll is instant.
func New(frames frame.Source, extent float64) *Viewport {
	v := &Viewport{frames: frames}
	v.extent[vrange.AxisVertical] = extent
	return v
}

func (v *Viewport) ScrollPosition(axis vrange.Axis) float64 {
	return v.position[axis]
}

func (v *Viewport) ViewportExtent(axis vrange.Axis) float64 {
	return v.extent[axis]
}

// SetExtent resizes the viewport along axis and keeps the position in
// bounds.
func (v *Viewport) SetExtent(axis vrange.Axis, extent float64) {
	v.extent[axis] = extent
	v.set(axis, v.position[axis])
}

// SetContentSize sets the scrollable content size along axis. Positions
// are clamped to [0, content-extent] once a content size is known.
func (v *Viewport) SetContentSize(axis vrange.Axis, size float64) {
	v.content[axis] = size
	v.set(axis, v.position[axis])
}

// MaxScroll returns the largest reachable position along axis, or +Inf
// when no content size is set.
func (v *Viewport) MaxScroll(axis vrange.Axis) float64 {
	if v.content[axis] <= 0 {
		return math.Inf(1)
	}
	return math.Max(0, v.content[axis]-v.extent[axis])
}

// ScrollTo moves to offset. A smooth scroll needs a frame source and
// replaces any animation in progress.
func (v *Viewport) ScrollTo(axis vrange.Axis, offset float64, behavior vrange.Behavior) {
	v.stopAnimation()
	if behavior == vrange.BehaviorInstant || v.frames == nil {
		v.set(axis, offset)
		return
	}
	v.anim = &animation{axis: axis, from: v.position[axis], to: v.clamp(axis, offset)}
	v.anim.id = v.frames.RequestFrame(v.animate)
}

// ScrollBy moves by delta instantly.
func (v *Viewport) ScrollBy(axis vrange.Axis, delta float64) {
	v.ScrollTo(axis, v.position[axis]+delta, vrange.BehaviorInstant)
}

// Animating reports whether a smooth scroll is in progress.
func (v *Viewport) Animating() bool {
	return v.anim != nil
}

// Scrolls returns how many position changes were reported.
func (v *Viewport) Scrolls() int {
	return v.scrolls
}

func (v *Viewport) animate() {
	a := v.anim
	if a == nil {
		return
	}
	a.step++
	t := float64(a.step) / SmoothFrames
	pos := a.from + (a.to-a.from)*easeOutCubic(t)
	if a.step >= SmoothFrames {
		v.anim = nil
		pos = a.to
	} else {
		a.id = v.frames.RequestFrame(v.animate)
	}
	v.set(a.axis, pos)
}

func (v *Viewport) stopAnimation() {
	if v.anim != nil {
		v.frames.CancelFrame(v.anim.id)
		v.anim = nil
	}
}

func easeOutCubic(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

func (v *Viewport) clamp(axis vrange.Axis, offset float64) float64 {
	if math.IsNaN(offset) {
		return v.position[axis]
	}
	return math.Min(math.Max(offset, 0), v.MaxScroll(axis))
}

func (v *Viewport) set(axis vrange.Axis, offset float64) {
	offset = v.clamp(axis, offset)
	if offset == v.position[axis] {
		return
	}
	v.position[axis] = offset
	v.scrolls++
	for _, l := range append([]listener(nil), v.listeners...) {
		l.fn()
	}
}

// OnScroll registers fn for position changes.
func (v *Viewport) OnScroll(fn func()) (remove func()) {
	v.next++
	id := v.next
	v.listeners = append(v.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range v.listeners {
			if l.id == id {
				v.listeners = append(v.listeners[:i:i], v.listeners[i+1:]...)
				return
			}
		}
	}
}

// Listeners returns the number of registered scroll listeners.
func (v *Viewport) Listeners() int {
	return len(v.listeners)
}
