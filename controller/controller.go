package controller

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/vrange"
	"github.com/wippyai/vrange/engine"
	"github.com/wippyai/vrange/errors"
	"github.com/wippyai/vrange/frame"
	"github.com/wippyai/vrange/gateway"
	"github.com/wippyai/vrange/scheduler"
	"github.com/wippyai/vrange/signal"
)

// State is the controller's top-level state.
type State uint8

const (
	StateUninitialized State = iota
	StateLoading
	StateUniformReady
	StateVariableReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateUniformReady:
		return "uniform-ready"
	case StateVariableReady:
		return "variable-ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Gateway is the part of the engine gateway the controller uses.
// *gateway.Gateway implements it.
type Gateway interface {
	Initialize(ctx context.Context) error
	CreateUniformHandle(ctx context.Context, count int, itemSize float64) (engine.Uniform, error)
	CreateVariableHandle(ctx context.Context, sizes []float64) (engine.Variable, error)
}

var _ Gateway = (*gateway.Gateway)(nil)

// Element is a scrollable viewport.
type Element interface {
	// ScrollPosition returns the current scroll offset along axis.
	ScrollPosition(axis vrange.Axis) float64

	// ViewportExtent returns the visible size along axis. 0 means the
	// element has not been laid out yet.
	ViewportExtent(axis vrange.Axis) float64

	// ScrollTo moves the element. A smooth scroll reports intermediate
	// positions through the OnScroll listeners.
	ScrollTo(axis vrange.Axis, offset float64, behavior vrange.Behavior)

	// OnScroll registers fn for scroll events and returns its remover.
	OnScroll(fn func()) (remove func())
}

// EstimateFunc returns the size of the item at index.
type EstimateFunc func(index int) float64

type lastRange struct {
	start, end int
	padding    float64
	valid      bool
}

// Controller owns one engine handle and publishes the visible range of a
// list of itemCount items.
//
// A Controller is not safe for concurrent use. Call it from the goroutine
// that runs its frame.Source, which is also where scroll recomputations
// happen.
type Controller struct {
	gw       Gateway
	frames   frame.Source
	sched    *scheduler.Scheduler
	estimate EstimateFunc
	logger   *zap.Logger

	handle   engine.Handle
	uniform  engine.Uniform
	variable engine.Variable
	el       Element
	unscroll func()

	rangeSig   *signal.Signal[*vrange.VirtualRange]
	loadingSig *signal.Signal[bool]
	errSig     *signal.Signal[error]

	last        lastRange
	itemCount   int
	overscan    int
	uniformSize float64
	multiplier  float64
	retryID     frame.ID
	retrying    bool
	sampled     bool
	closed      bool
	state       State
	axis        vrange.Axis
}

// New creates a controller for itemCount items sized by estimate. gw may
// be nil to use gateway.Default().
func New(gw Gateway, frames frame.Source, itemCount int, estimate EstimateFunc, opts ...Option) (*Controller, error) {
	if frames == nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("frames").
			Detail("frame source is required").
			Build()
	}
	if estimate == nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("estimateSize").
			Detail("size estimator is required").
			Build()
	}
	if itemCount < 0 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("itemCount").
			Value(itemCount).
			Detail("item count must be >= 0").
			Build()
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.overscan < 0 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("overscan").
			Value(o.overscan).
			Detail("overscan must be >= 0").
			Build()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if gw == nil {
		gw = gateway.Default()
	}

	c := &Controller{
		gw:         gw,
		frames:     frames,
		estimate:   estimate,
		logger:     o.logger,
		overscan:   o.overscan,
		axis:       o.axis,
		itemCount:  itemCount,
		multiplier: 1,
		rangeSig:   signal.New(vrange.EmptyRange()),
		loadingSig: signal.New(false),
		errSig:     signal.New[error](nil),
	}
	c.sched = scheduler.New(frames, c.onFrame)
	return c, nil
}

// Setup initializes the engine gateway, samples sizes and creates the
// engine handle. It blocks until the gateway settles or ctx is done. A
// failure is terminal: the controller moves to StateError, publishes the
// error and never recomputes.
func (c *Controller) Setup(ctx context.Context) error {
	if c.closed {
		return errors.Released("setup")
	}
	if c.state != StateUninitialized {
		return errors.New(errors.PhaseSetup, errors.KindInvalidInput).
			Op("setup").
			Value(c.state.String()).
			Detail("setup already ran").
			Build()
	}

	c.state = StateLoading
	c.loadingSig.Set(true)

	err := c.gw.Initialize(ctx)
	if err != nil {
		if !errors.Is(err, errors.ErrEngineLoad) {
			err = errors.EngineLoad(err)
		}
	} else {
		err = c.build(ctx)
	}
	if err != nil {
		c.fail(err)
		return err
	}

	c.loadingSig.Set(false)
	c.invalidate()
	if c.el != nil {
		return c.Recompute()
	}
	return nil
}

func (c *Controller) fail(err error) {
	c.logger.Error("controller setup failed", zap.Error(err))
	c.state = StateError
	c.errSig.Set(err)
	c.loadingSig.Set(false)
}

// build creates the handle for the current item count, replacing any
// handle held before. The leading sizes decide the path, except that a
// controller already on the variable path stays there.
func (c *Controller) build(ctx context.Context) error {
	n := c.itemCount
	sampleSize := min(vrange.UniformSampleSize, n)

	first := 0.0
	uniform := c.variable == nil
	if uniform && n > 0 {
		first = c.sizeAt(0)
		for i := 1; i < sampleSize; i++ {
			if c.sizeAt(i) != first {
				uniform = false
				break
			}
		}
	}

	var total float64
	if uniform {
		h, err := c.gw.CreateUniformHandle(ctx, n, first)
		if err != nil {
			return err
		}
		c.replaceHandle(ctx, h)
		c.uniform = h
		c.uniformSize = first
		c.sampled = n > 0
		c.state = StateUniformReady
		total = float64(n) * first
	} else {
		h, err := c.gw.CreateVariableHandle(ctx, c.sizes(n))
		if err != nil {
			return err
		}
		total, err = h.OffsetOf(n)
		if err != nil {
			h.Free(ctx)
			return err
		}
		c.replaceHandle(ctx, h)
		c.variable = h
		c.uniformSize = 0
		c.sampled = true
		c.state = StateVariableReady
	}
	c.multiplier = vrange.ScrollMultiplier(total)

	c.logger.Debug("engine path selected",
		zap.Bool("uniform", uniform),
		zap.Int("itemCount", n),
		zap.Float64("scrollMultiplier", c.multiplier))
	return nil
}

func (c *Controller) sizeAt(i int) float64 {
	s := c.estimate(i)
	if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
		return 0
	}
	return s
}

func (c *Controller) sizes(n int) []float64 {
	sizes := make([]float64, n)
	for i := range sizes {
		sizes[i] = c.sizeAt(i)
	}
	return sizes
}

// replaceHandle makes h the active handle and frees the previous one.
func (c *Controller) replaceHandle(ctx context.Context, h engine.Handle) {
	old := c.handle
	c.handle = h
	c.uniform = nil
	c.variable = nil
	if old != nil {
		c.free(ctx, old)
	}
}

func (c *Controller) releaseHandle(ctx context.Context) error {
	h := c.handle
	c.handle = nil
	c.uniform = nil
	c.variable = nil
	if h == nil {
		return nil
	}
	return c.free(ctx, h)
}

func (c *Controller) free(ctx context.Context, h engine.Handle) error {
	err := h.Free(ctx)
	if err != nil {
		c.logger.Warn("engine handle release failed", zap.Error(err))
	} else {
		c.logger.Debug("engine handle released", zap.Int("count", h.Count()))
	}
	return err
}

func (c *Controller) ready() bool {
	return !c.closed && c.handle != nil &&
		(c.state == StateUniformReady || c.state == StateVariableReady)
}

func (c *Controller) invalidate() {
	c.last = lastRange{}
}

// Attach binds the scrollable element. The returned detach func unbinds it
// and is safe to call more than once; the caller must call it on every
// exit path. Only one element can be attached at a time.
func (c *Controller) Attach(el Element) (detach func(), err error) {
	if c.closed {
		return nil, errors.Released("attach")
	}
	if el == nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("element").
			Detail("scroll element is required").
			Build()
	}
	if c.el != nil {
		return nil, errors.AlreadyAttached()
	}

	c.el = el
	c.unscroll = el.OnScroll(c.sched.Notify)
	c.invalidate()
	if c.ready() {
		if err := c.Recompute(); err != nil {
			c.logger.Warn("initial recompute failed", zap.Error(err))
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if c.el == el {
				c.detach()
			}
		})
	}, nil
}

func (c *Controller) detach() {
	if c.unscroll != nil {
		c.unscroll()
	}
	c.sched.Cancel()
	c.cancelRetry()
	c.el = nil
	c.unscroll = nil
}

func (c *Controller) onFrame() {
	if err := c.Recompute(); err != nil {
		c.logger.Warn("scroll recompute failed", zap.Error(err))
	}
}

func (c *Controller) deferLayout(extent float64) {
	if c.retrying {
		return
	}
	c.logger.Debug("layout not settled, retrying next frame",
		zap.Error(errors.LayoutNotSettled(extent)))
	c.retrying = true
	c.retryID = c.frames.RequestFrame(func() {
		c.retrying = false
		c.retryID = 0
		c.onFrame()
	})
}

func (c *Controller) cancelRetry() {
	if c.retrying {
		c.frames.CancelFrame(c.retryID)
	}
	c.retrying = false
	c.retryID = 0
}

// Recompute reads the element, queries the engine and publishes a new
// range unless the window and padding are unchanged. It is a no-op before
// setup completes, without an element, and after Close.
func (c *Controller) Recompute() error {
	if !c.ready() || c.el == nil {
		return nil
	}

	extent := c.el.ViewportExtent(c.axis)
	if !(extent > 0) {
		c.deferLayout(extent)
		return nil
	}

	scroll := c.el.ScrollPosition(c.axis)
	if math.IsNaN(scroll) {
		scroll = 0
	}
	virtual := vrange.ToVirtual(scroll, c.multiplier)

	start, end, err := c.handle.CalcRange(virtual, extent, c.overscan)
	if err != nil {
		c.logger.Warn("engine range query failed", zap.Error(err))
		return err
	}
	end = min(max(end, 0), c.itemCount)
	start = min(max(start, 0), end)

	first, err := c.offsetOf(start)
	if err != nil {
		c.logger.Warn("engine offset lookup failed", zap.Error(err))
		return err
	}
	padding := vrange.ToDOM(first, c.multiplier)

	if c.last.valid && start == c.last.start && end == c.last.end &&
		math.Abs(padding-c.last.padding) < vrange.SkipThreshold {
		return nil
	}

	r, err := c.snapshot(start, end, first, padding)
	if err != nil {
		c.logger.Warn("engine lookup failed", zap.Error(err))
		return err
	}
	c.last = lastRange{start: start, end: end, padding: padding, valid: true}
	c.rangeSig.Set(r)
	return nil
}

func (c *Controller) offsetOf(index int) (float64, error) {
	if c.uniform != nil {
		return float64(index) * c.uniformSize, nil
	}
	return c.variable.OffsetOf(index)
}

func (c *Controller) virtualTotal() (float64, error) {
	if c.uniform != nil {
		return float64(c.itemCount) * c.uniformSize, nil
	}
	return c.variable.OffsetOf(c.itemCount)
}

func (c *Controller) snapshot(start, end int, first, padding float64) (*vrange.VirtualRange, error) {
	n := end - start
	r := &vrange.VirtualRange{
		Items:      make([]int, n),
		Offsets:    make([]float64, n),
		Sizes:      make([]float64, n),
		StartIndex: start,
		EndIndex:   end,
		PaddingTop: padding,
	}
	for i := range n {
		r.Items[i] = start + i
		if c.uniform != nil {
			r.Offsets[i] = float64(i) * c.uniformSize
			r.Sizes[i] = c.uniformSize
			continue
		}
		off, err := c.variable.OffsetOf(start + i)
		if err != nil {
			return nil, err
		}
		size, err := c.variable.SizeOf(start + i)
		if err != nil {
			return nil, err
		}
		r.Offsets[i] = off - first
		r.Sizes[i] = size
	}

	total, err := c.virtualTotal()
	if err != nil {
		return nil, err
	}
	r.TotalHeight = vrange.ClampHeight(vrange.ToDOM(total, c.multiplier))
	return r, nil
}

// SetItemCount changes the number of items. On the uniform path the
// handle is updated in place; on the variable path every size is sampled
// again and a new handle replaces the old one. A uniform path chosen for
// an empty list samples again once items appear. The next range is always
// published.
func (c *Controller) SetItemCount(ctx context.Context, n int) error {
	if n < 0 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("itemCount").
			Value(n).
			Detail("item count must be >= 0").
			Build()
	}
	if c.closed {
		return errors.Released("set-item-count")
	}
	if c.state == StateError {
		return errors.NotReady("set-item-count", c.state.String())
	}
	if !c.ready() {
		c.itemCount = n
		return nil
	}

	prev := c.itemCount
	switch {
	case c.uniform != nil && c.sampled:
		if err := c.uniform.SetCount(n); err != nil {
			return err
		}
		c.itemCount = n
		c.multiplier = vrange.ScrollMultiplier(float64(n) * c.uniformSize)

	default:
		c.itemCount = n
		if err := c.build(ctx); err != nil {
			c.itemCount = prev
			return err
		}
	}

	c.invalidate()
	return c.Recompute()
}

// ScrollToIndex scrolls the element so that index starts at the viewport
// edge.
func (c *Controller) ScrollToIndex(index int, behavior vrange.Behavior) error {
	const op = "scroll-to-index"
	if !c.ready() {
		return errors.NotReady(op, c.state.String())
	}
	if c.el == nil {
		return errNoElement(op)
	}
	if index < 0 || index >= c.itemCount {
		return errors.OutOfBounds(errors.PhaseRuntime, op, index, c.itemCount)
	}
	off, err := c.offsetOf(index)
	if err != nil {
		return err
	}
	c.el.ScrollTo(c.axis, vrange.ToDOM(off, c.multiplier), behavior)
	return nil
}

// ScrollToOffset scrolls the element to offset, which is taken as an
// element coordinate and not remapped.
func (c *Controller) ScrollToOffset(offset float64, behavior vrange.Behavior) error {
	const op = "scroll-to-offset"
	if c.closed {
		return errors.Released(op)
	}
	if c.el == nil {
		return errNoElement(op)
	}
	c.el.ScrollTo(c.axis, offset, behavior)
	return nil
}

func errNoElement(op string) error {
	return errors.New(errors.PhaseLayout, errors.KindInvalidInput).
		Op(op).
		Detail("no element attached").
		Build()
}

// Close cancels pending recomputations, detaches the element and frees
// the engine handle. It is idempotent.
func (c *Controller) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.sched.Cancel()
	c.cancelRetry()
	if c.el != nil {
		c.detach()
	}
	err := c.releaseHandle(ctx)
	c.estimate = nil
	return err
}

// State returns the top-level state.
func (c *Controller) State() State { return c.state }

// IsUniform reports whether the uniform path is active.
func (c *Controller) IsUniform() bool { return c.uniform != nil }

// ScrollMultiplier returns the current virtual-to-element scale.
func (c *Controller) ScrollMultiplier() float64 { return c.multiplier }

// ItemCount returns the number of items.
func (c *Controller) ItemCount() int { return c.itemCount }

// Overscan returns the configured overscan.
func (c *Controller) Overscan() int { return c.overscan }

// Axis returns the scroll axis.
func (c *Controller) Axis() vrange.Axis { return c.axis }

// Range returns the last published range.
func (c *Controller) Range() *vrange.VirtualRange { return c.rangeSig.Get() }

// Loading reports whether setup is in progress.
func (c *Controller) Loading() bool { return c.loadingSig.Get() }

// Err returns the setup error, if any.
func (c *Controller) Err() error { return c.errSig.Get() }

// OnRange subscribes to published ranges.
func (c *Controller) OnRange(fn func(*vrange.VirtualRange)) (unsubscribe func()) {
	return c.rangeSig.Subscribe(fn)
}

// OnLoading subscribes to loading changes.
func (c *Controller) OnLoading(fn func(bool)) (unsubscribe func()) {
	return c.loadingSig.Subscribe(fn)
}

// OnError subscribes to the setup error.
func (c *Controller) OnError(fn func(error)) (unsubscribe func()) {
	return c.errSig.Subscribe(fn)
}
