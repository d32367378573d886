package controller

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/vrange"
	"github.com/wippyai/vrange/engine"
	"github.com/wippyai/vrange/engine/enginetest"
	"github.com/wippyai/vrange/errors"
	"github.com/wippyai/vrange/frame"
	"github.com/wippyai/vrange/gateway"
	"github.com/wippyai/vrange/viewport"
)

type fakeGateway struct {
	rt        *enginetest.Runtime
	initErr   error
	initCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{rt: enginetest.NewRuntime()}
}

func (g *fakeGateway) Initialize(context.Context) error {
	g.initCalls++
	return g.initErr
}

func (g *fakeGateway) CreateUniformHandle(ctx context.Context, count int, itemSize float64) (engine.Uniform, error) {
	return g.rt.NewUniform(ctx, count, itemSize)
}

func (g *fakeGateway) CreateVariableHandle(ctx context.Context, sizes []float64) (engine.Variable, error) {
	return g.rt.NewVariable(ctx, sizes)
}

func constant(size float64) EstimateFunc {
	return func(int) float64 { return size }
}

func alternating(i int) float64 {
	if i%2 == 0 {
		return 40
	}
	return 60
}

type harness struct {
	ctx    context.Context
	gw     *fakeGateway
	frames *frame.Queue
	vp     *viewport.Viewport
	c      *Controller
	ranges []*vrange.VirtualRange
	detach func()
}

// newHarness sets up a controller over n items with a 500-unit viewport
// attached.
func newHarness(t *testing.T, n int, estimate EstimateFunc, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		ctx:    context.Background(),
		gw:     newFakeGateway(),
		frames: frame.NewQueue(),
	}
	c, err := New(h.gw, h.frames, n, estimate, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.c = c
	c.OnRange(func(r *vrange.VirtualRange) { h.ranges = append(h.ranges, r) })

	if err := c.Setup(h.ctx); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	h.vp = viewport.New(h.frames, 500)
	h.vp.SetExtent(vrange.AxisHorizontal, 500)
	h.detach, err = c.Attach(h.vp)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() { c.Close(h.ctx) })
	return h
}

// scroll moves the viewport and runs frames until the scheduler settles.
func (h *harness) scroll(offset float64) {
	h.vp.ScrollTo(h.c.Axis(), offset, vrange.BehaviorInstant)
	h.frames.Drain(100)
}

func checkInvariants(t *testing.T, r *vrange.VirtualRange, itemCount int) {
	t.Helper()
	if r.StartIndex < 0 || r.StartIndex > r.EndIndex || r.EndIndex > itemCount {
		t.Fatalf("range [%d, %d) violates 0 <= start <= end <= %d", r.StartIndex, r.EndIndex, itemCount)
	}
	n := r.EndIndex - r.StartIndex
	if len(r.Items) != n || len(r.Offsets) != n || len(r.Sizes) != n {
		t.Fatalf("array lengths %d/%d/%d, want %d", len(r.Items), len(r.Offsets), len(r.Sizes), n)
	}
	if r.TotalHeight > vrange.MaxSafeScrollHeight {
		t.Fatalf("TotalHeight %v exceeds ceiling", r.TotalHeight)
	}
}

func TestNew_Validation(t *testing.T) {
	q := frame.NewQueue()
	gw := newFakeGateway()
	tests := []struct {
		name     string
		frames   frame.Source
		estimate EstimateFunc
		count    int
		opts     []Option
		path     string
	}{
		{"no frames", nil, constant(1), 1, nil, "frames"},
		{"no estimator", q, nil, 1, nil, "estimateSize"},
		{"negative count", q, constant(1), -1, nil, "itemCount"},
		{"negative overscan", q, constant(1), 1, []Option{WithOverscan(-1)}, "overscan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(gw, tt.frames, tt.count, tt.estimate, tt.opts...)
			var e *errors.Error
			if !errors.As(err, &e) || e.Phase != errors.PhaseConfig {
				t.Fatalf("New = %v, want config error", err)
			}
			if diff := cmp.Diff([]string{tt.path}, e.Path); diff != "" {
				t.Errorf("path (-want +got):\n%s", diff)
			}
		})
	}
}

func TestController_Defaults(t *testing.T) {
	c, err := New(newFakeGateway(), frame.NewQueue(), 10, constant(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Overscan() != vrange.DefaultOverscan || c.Axis() != vrange.AxisVertical {
		t.Errorf("overscan=%d axis=%s", c.Overscan(), c.Axis())
	}
	if c.State() != StateUninitialized || c.Loading() || c.Err() != nil {
		t.Errorf("initial state = %s loading=%v err=%v", c.State(), c.Loading(), c.Err())
	}
	if r := c.Range(); r == nil || r.Len() != 0 {
		t.Errorf("initial range = %+v", r)
	}
}

func TestController_UniformScenario(t *testing.T) {
	h := newHarness(t, 1000, constant(50))

	if !h.c.IsUniform() || h.c.State() != StateUniformReady {
		t.Fatalf("state = %s uniform=%v", h.c.State(), h.c.IsUniform())
	}
	if h.c.ScrollMultiplier() != 1 {
		t.Errorf("ScrollMultiplier = %v, want 1", h.c.ScrollMultiplier())
	}

	want := &vrange.VirtualRange{
		Items:       []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		Offsets:     []float64{0, 50, 100, 150, 200, 250, 300, 350, 400, 450, 500, 550, 600},
		Sizes:       []float64{50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50},
		StartIndex:  0,
		EndIndex:    13,
		TotalHeight: 50000,
		PaddingTop:  0,
	}
	if diff := cmp.Diff(want, h.c.Range()); diff != "" {
		t.Errorf("range mismatch (-want +got):\n%s", diff)
	}

	h.scroll(1000)
	r := h.c.Range()
	if r.StartIndex != 17 || r.EndIndex != 33 || r.PaddingTop != 850 {
		t.Errorf("after scroll: [%d, %d) padding %v", r.StartIndex, r.EndIndex, r.PaddingTop)
	}
	if r.Offsets[0] != 0 || r.Offsets[1] != 50 {
		t.Errorf("offsets not relative to first item: %v", r.Offsets[:2])
	}
}

func TestController_LargeUniformUsesMultiplier(t *testing.T) {
	h := newHarness(t, 1_000_000, constant(50))

	if !h.c.IsUniform() {
		t.Fatal("expected uniform path")
	}
	m := h.c.ScrollMultiplier()
	if math.Abs(m-50_000_000.0/15_000_000.0) > 1e-9 || math.Abs(m-3.333333) > 1e-6 {
		t.Errorf("ScrollMultiplier = %v, want ~3.333333", m)
	}
	if r := h.c.Range(); math.Abs(r.TotalHeight-vrange.MaxSafeScrollHeight) > 1e-6 {
		t.Errorf("TotalHeight = %v, want %v", r.TotalHeight, vrange.MaxSafeScrollHeight)
	}

	// With content clamped to TotalHeight the element stops one viewport
	// short of the ceiling. The viewport extent is not scaled, so the last
	// extent*(m-1)/size items stay out of reach.
	h.vp.SetContentSize(vrange.AxisVertical, h.c.Range().TotalHeight)
	h.scroll(vrange.MaxSafeScrollHeight)
	if got, want := h.vp.ScrollPosition(vrange.AxisVertical), float64(vrange.MaxSafeScrollHeight-500); math.Abs(got-want) > 1e-6 {
		t.Errorf("clamped position = %v, want %v", got, want)
	}
	r := h.c.Range()
	checkInvariants(t, r, 1_000_000)
	shortfall := 1_000_000 - r.EndIndex
	if limit := int(math.Ceil(500 * (m - 1) / 50)); shortfall <= 0 || shortfall > limit {
		t.Errorf("EndIndex at clamped bottom = %d, want within %d of the end but short of it", r.EndIndex, limit)
	}
	if err := h.c.ScrollToIndex(999_999, vrange.BehaviorInstant); err != nil {
		t.Fatalf("ScrollToIndex: %v", err)
	}
	h.frames.Drain(100)
	if h.c.Range().Contains(999_999) {
		t.Error("last item reachable through a clamped element")
	}

	// Without a content size the position can reach the ceiling, which maps
	// to the end of the list.
	h.vp.SetContentSize(vrange.AxisVertical, 0)
	h.scroll(vrange.MaxSafeScrollHeight)
	if r := h.c.Range(); r.EndIndex != 1_000_000 {
		t.Errorf("EndIndex at ceiling = %d, want 1000000", r.EndIndex)
	}

	dom := 123_456.0
	if got := vrange.ToDOM(vrange.ToVirtual(dom, m), m); math.Abs(got-dom) > 1e-6 {
		t.Errorf("round trip = %v, want %v", got, dom)
	}
}

func TestController_VariableScenario(t *testing.T) {
	calls := 0
	estimate := func(i int) float64 {
		calls++
		return alternating(i)
	}
	h := newHarness(t, 1000, estimate)

	if h.c.IsUniform() || h.c.State() != StateVariableReady {
		t.Fatalf("state = %s uniform=%v", h.c.State(), h.c.IsUniform())
	}
	if calls < 1000 {
		t.Errorf("estimator calls = %d, want every index sampled", calls)
	}
	if len(h.gw.rt.Variables()) != 1 || len(h.gw.rt.Uniforms()) != 0 {
		t.Errorf("handles: %d variable, %d uniform", len(h.gw.rt.Variables()), len(h.gw.rt.Uniforms()))
	}

	r := h.c.Range()
	if r.TotalHeight != 50_000 {
		t.Errorf("TotalHeight = %v, want 50000", r.TotalHeight)
	}
	if diff := cmp.Diff([]float64{40, 60, 40}, r.Sizes[:3]); diff != "" {
		t.Errorf("sizes (-want +got):\n%s", diff)
	}

	h.scroll(1000)
	r = h.c.Range()
	// Offset 1000 is the start of item 20; overscan 3.
	if r.StartIndex != 17 || r.PaddingTop != 840 {
		t.Errorf("after scroll: start %d padding %v", r.StartIndex, r.PaddingTop)
	}
	if diff := cmp.Diff([]float64{0, 60, 100, 160}, r.Offsets[:4]); diff != "" {
		t.Errorf("offsets (-want +got):\n%s", diff)
	}
}

func TestController_UniformDetectionSamplesOnlyLeadingItems(t *testing.T) {
	// Sizes differ only after the sample window.
	estimate := func(i int) float64 {
		if i < vrange.UniformSampleSize {
			return 30
		}
		return 90
	}
	h := newHarness(t, 100, estimate)
	if !h.c.IsUniform() {
		t.Error("expected uniform path")
	}
	if r := h.c.Range(); r.TotalHeight != 3000 {
		t.Errorf("TotalHeight = %v, want 3000", r.TotalHeight)
	}
}

func TestController_RangeInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for _, tc := range []struct {
		name     string
		n        int
		estimate EstimateFunc
	}{
		{"uniform", 5000, constant(24)},
		{"variable", 5000, alternating},
		{"huge uniform", 2_000_000, constant(40)},
		{"tiny", 3, constant(500)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.n, tc.estimate, WithOverscan(rng.IntN(6)))
			for range 200 {
				h.scroll(rng.Float64() * vrange.MaxSafeScrollHeight)
				checkInvariants(t, h.c.Range(), tc.n)
			}
		})
	}
}

func TestController_RecomputeWithoutChangeKeepsInstance(t *testing.T) {
	h := newHarness(t, 1000, constant(50))
	h.scroll(2000)
	before := h.c.Range()
	published := len(h.ranges)

	if err := h.c.Recompute(); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Recompute(); err != nil {
		t.Fatal(err)
	}
	if h.c.Range() != before {
		t.Error("unchanged recompute published a new range")
	}
	if len(h.ranges) != published {
		t.Errorf("publications = %d, want %d", len(h.ranges), published)
	}
}

func TestController_SubPixelScrollIsSkipped(t *testing.T) {
	h := newHarness(t, 1000, constant(50))
	h.vp.SetExtent(vrange.AxisVertical, 475)
	h.scroll(0)
	h.c.Recompute()
	before := h.c.Range()

	// Same window, same padding.
	h.scroll(10)
	if h.c.Range() != before {
		t.Error("scroll within the same window republished")
	}

	h.scroll(1000)
	if h.c.Range() == before {
		t.Error("scroll to a new window did not publish")
	}
}

func TestController_SubPixelPaddingUnderMultiplier(t *testing.T) {
	h := newHarness(t, 1_000_000, constant(50))
	m := h.c.ScrollMultiplier()

	// Land inside item 1000, away from item edges.
	pos := (1000*50 + 20) / m
	h.scroll(pos)
	before := h.c.Range()
	h.scroll(pos + 0.01)
	if h.c.Range() != before {
		t.Error("sub-pixel move republished")
	}
}

func TestController_ScrollToIndex(t *testing.T) {
	for _, tc := range []struct {
		name     string
		n        int
		estimate EstimateFunc
		index    int
	}{
		{"uniform", 1000, constant(50), 700},
		{"variable", 1000, alternating, 333},
		{"multiplied", 1_000_000, constant(50), 600_000},
	} {
		for _, behavior := range []vrange.Behavior{vrange.BehaviorInstant, vrange.BehaviorSmooth} {
			t.Run(tc.name+"/"+behavior.String(), func(t *testing.T) {
				h := newHarness(t, tc.n, tc.estimate)
				if err := h.c.ScrollToIndex(tc.index, behavior); err != nil {
					t.Fatalf("ScrollToIndex: %v", err)
				}
				h.frames.Drain(100)
				r := h.c.Range()
				if !r.Contains(tc.index) {
					t.Errorf("range [%d, %d) does not contain %d", r.StartIndex, r.EndIndex, tc.index)
				}
			})
		}
	}
}

func TestController_ScrollToIndexErrors(t *testing.T) {
	h := newHarness(t, 10, constant(50))
	for _, i := range []int{-1, 10} {
		if err := h.c.ScrollToIndex(i, vrange.BehaviorInstant); err == nil {
			t.Errorf("ScrollToIndex(%d) succeeded", i)
		}
	}

	c, _ := New(newFakeGateway(), frame.NewQueue(), 10, constant(1))
	if err := c.ScrollToIndex(0, vrange.BehaviorInstant); !errors.Is(err, errors.ErrNotReady) {
		t.Errorf("ScrollToIndex before setup = %v, want ErrNotReady", err)
	}
}

func TestController_ScrollToOffsetIsNotRemapped(t *testing.T) {
	h := newHarness(t, 1_000_000, constant(50))
	if err := h.c.ScrollToOffset(4200, vrange.BehaviorInstant); err != nil {
		t.Fatalf("ScrollToOffset: %v", err)
	}
	if got := h.vp.ScrollPosition(vrange.AxisVertical); got != 4200 {
		t.Errorf("element position = %v, want 4200", got)
	}

	h.detach()
	if err := h.c.ScrollToOffset(0, vrange.BehaviorInstant); err == nil {
		t.Error("ScrollToOffset without element succeeded")
	}
}

func TestController_CloseFreesHandleOnce(t *testing.T) {
	h := newHarness(t, 1000, constant(50))
	if err := h.c.Close(h.ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.c.Close(h.ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	u := h.gw.rt.Uniforms()
	if len(u) != 1 || u[0].Frees != 1 {
		t.Fatalf("frees = %d, want 1", u[0].Frees)
	}
	if h.vp.Listeners() != 0 {
		t.Error("scroll listener left on element")
	}
	if err := h.c.Recompute(); err != nil {
		t.Errorf("Recompute after Close = %v", err)
	}
}

func TestController_CloseCancelsPendingRecompute(t *testing.T) {
	h := newHarness(t, 1000, constant(50))
	published := len(h.ranges)
	h.vp.ScrollTo(vrange.AxisVertical, 5000, vrange.BehaviorInstant)
	if h.frames.Pending() == 0 {
		t.Fatal("scroll did not schedule a recompute")
	}

	h.c.Close(h.ctx)
	if h.frames.Pending() != 0 {
		t.Errorf("frame callbacks left after Close: %d", h.frames.Pending())
	}
	h.frames.Drain(100)
	if len(h.ranges) != published {
		t.Error("range published after Close")
	}
	if h.gw.rt.Uniforms()[0].RangeCalls != 1 {
		t.Errorf("engine queried after Close")
	}
}

func TestController_ScrollEventsCoalesce(t *testing.T) {
	h := newHarness(t, 100_000, constant(20))
	u := h.gw.rt.Uniforms()[0]
	calls := u.RangeCalls

	for i := range 25 {
		h.vp.ScrollTo(vrange.AxisVertical, float64(1000+i*100), vrange.BehaviorInstant)
	}
	h.frames.Drain(100)

	if got := u.RangeCalls - calls; got != 1 {
		t.Errorf("engine range queries = %d, want 1", got)
	}
	// Only the latest position matters.
	if r := h.c.Range(); r.StartIndex != (1000+24*100)/20-3 {
		t.Errorf("StartIndex = %d", r.StartIndex)
	}
}

func TestController_ItemCountChangeUniform(t *testing.T) {
	h := newHarness(t, 1000, constant(50))
	before := h.c.Range()
	if before.TotalHeight != 50_000 {
		t.Fatalf("TotalHeight = %v", before.TotalHeight)
	}

	if err := h.c.SetItemCount(h.ctx, 2000); err != nil {
		t.Fatalf("SetItemCount: %v", err)
	}
	after := h.c.Range()
	if after == before {
		t.Fatal("count change did not publish")
	}
	if after.TotalHeight != 100_000 {
		t.Errorf("TotalHeight = %v, want 100000", after.TotalHeight)
	}
	if diff := cmp.Diff(before.Items, after.Items); diff != "" {
		t.Errorf("window moved without scrolling (-before +after):\n%s", diff)
	}

	u := h.gw.rt.Uniforms()
	if len(u) != 1 || u[0].Count() != 2000 || u[0].Frees != 0 {
		t.Errorf("uniform handle not updated in place: %d handles", len(u))
	}
	if h.c.ItemCount() != 2000 {
		t.Errorf("ItemCount = %d", h.c.ItemCount())
	}
}

func TestController_ItemCountChangeVariable(t *testing.T) {
	h := newHarness(t, 1000, alternating)
	before := h.c.Range()

	if err := h.c.SetItemCount(h.ctx, 500); err != nil {
		t.Fatalf("SetItemCount: %v", err)
	}
	v := h.gw.rt.Variables()
	if len(v) != 2 {
		t.Fatalf("variable handles = %d, want 2", len(v))
	}
	if v[0].Frees != 1 || v[1].Frees != 0 {
		t.Errorf("frees old=%d new=%d, want 1 and 0", v[0].Frees, v[1].Frees)
	}
	after := h.c.Range()
	if after == before || after.TotalHeight != 25_000 {
		t.Errorf("TotalHeight = %v, want 25000", after.TotalHeight)
	}

	h.c.Close(h.ctx)
	if v[1].Frees != 1 {
		t.Errorf("new handle frees = %d, want 1", v[1].Frees)
	}
}

func TestController_ItemCountChangeMultiplier(t *testing.T) {
	h := newHarness(t, 1000, constant(50))
	if err := h.c.SetItemCount(h.ctx, 1_000_000); err != nil {
		t.Fatal(err)
	}
	if m := h.c.ScrollMultiplier(); math.Abs(m-50.0/15.0) > 1e-9 {
		t.Errorf("ScrollMultiplier = %v", m)
	}
	if err := h.c.SetItemCount(h.ctx, 10); err != nil {
		t.Fatal(err)
	}
	if m := h.c.ScrollMultiplier(); m != 1 {
		t.Errorf("ScrollMultiplier = %v, want 1", m)
	}
}

func TestController_EmptyList(t *testing.T) {
	h := newHarness(t, 0, alternating)

	if !h.c.IsUniform() {
		t.Error("empty list should start on the uniform path")
	}
	r := h.c.Range()
	checkInvariants(t, r, 0)
	if r.StartIndex != 0 || r.EndIndex != 0 || r.TotalHeight != 0 {
		t.Errorf("empty range = %+v", r)
	}

	// Items arriving re-run path selection.
	if err := h.c.SetItemCount(h.ctx, 100); err != nil {
		t.Fatalf("SetItemCount: %v", err)
	}
	if h.c.IsUniform() || h.c.State() != StateVariableReady {
		t.Errorf("state = %s, want variable-ready", h.c.State())
	}
	if u := h.gw.rt.Uniforms(); u[0].Frees != 1 {
		t.Errorf("placeholder uniform frees = %d, want 1", u[0].Frees)
	}
	if r := h.c.Range(); r.TotalHeight != 5000 || r.EndIndex == 0 {
		t.Errorf("range after growth = [%d, %d) total %v", r.StartIndex, r.EndIndex, r.TotalHeight)
	}
}

func TestController_LayoutNotSettled(t *testing.T) {
	ctx := context.Background()
	q := frame.NewQueue()
	gw := newFakeGateway()
	c, _ := New(gw, q, 1000, constant(50))
	defer c.Close(ctx)
	if err := c.Setup(ctx); err != nil {
		t.Fatal(err)
	}

	vp := viewport.New(q, 0)
	published := 0
	c.OnRange(func(*vrange.VirtualRange) { published++ })
	if _, err := c.Attach(vp); err != nil {
		t.Fatal(err)
	}
	if published != 0 {
		t.Fatal("published with a zero-extent viewport")
	}

	q.Step()
	q.Step()
	if published != 0 || q.Pending() != 1 {
		t.Fatalf("published=%d pending=%d, want a retry each frame", published, q.Pending())
	}

	vp.SetExtent(vrange.AxisVertical, 500)
	q.Step()
	if published != 1 {
		t.Errorf("published = %d after layout, want 1", published)
	}
	if q.Pending() != 0 {
		t.Errorf("retry still pending")
	}
}

func TestController_SetupFailure(t *testing.T) {
	ctx := context.Background()
	q := frame.NewQueue()
	gw := newFakeGateway()
	boom := stderrors.New("wasm load failed")
	gw.initErr = boom

	c, _ := New(gw, q, 1000, constant(50))
	var loading []bool
	var published []error
	c.OnLoading(func(b bool) { loading = append(loading, b) })
	c.OnError(func(err error) { published = append(published, err) })

	err := c.Setup(ctx)
	if !errors.Is(err, errors.ErrEngineLoad) || !stderrors.Is(err, boom) {
		t.Fatalf("Setup = %v, want engine load failure wrapping boom", err)
	}
	if c.State() != StateError {
		t.Errorf("State = %s, want error", c.State())
	}
	if c.Loading() || c.Err() != err {
		t.Errorf("Loading=%v Err=%v", c.Loading(), c.Err())
	}
	if diff := cmp.Diff([]bool{true, false}, loading); diff != "" {
		t.Errorf("loading transitions (-want +got):\n%s", diff)
	}
	if len(published) != 1 || published[0] != err {
		t.Errorf("OnError = %v", published)
	}

	// Terminal: nothing is recomputed and setup does not retry.
	vp := viewport.New(q, 500)
	detach, _ := c.Attach(vp)
	defer detach()
	vp.ScrollTo(vrange.AxisVertical, 100, vrange.BehaviorInstant)
	q.Drain(10)
	if r := c.Range(); r.Len() != 0 {
		t.Errorf("range after failure = %+v", r)
	}
	if err := c.Setup(ctx); err == nil {
		t.Error("second Setup succeeded")
	}
	if err := c.SetItemCount(ctx, 5); !errors.Is(err, errors.ErrNotReady) {
		t.Errorf("SetItemCount after failure = %v, want ErrNotReady", err)
	}
	if gw.initCalls != 1 {
		t.Errorf("Initialize calls = %d, want 1", gw.initCalls)
	}
	if err := c.Close(ctx); err != nil {
		t.Errorf("Close = %v", err)
	}
}

func TestController_HandleCreationFailure(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	gw.rt.VariableErr = stderrors.New("out of memory")
	c, _ := New(gw, frame.NewQueue(), 100, alternating)

	if err := c.Setup(ctx); err == nil {
		t.Fatal("Setup succeeded")
	}
	if c.State() != StateError || c.Err() == nil {
		t.Errorf("State=%s Err=%v", c.State(), c.Err())
	}
}

func TestController_LoadingTransitions(t *testing.T) {
	ctx := context.Background()
	c, _ := New(newFakeGateway(), frame.NewQueue(), 10, constant(5))
	var loading []bool
	unsub := c.OnLoading(func(b bool) { loading = append(loading, b) })
	defer unsub()

	if err := c.Setup(ctx); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]bool{true, false}, loading); diff != "" {
		t.Errorf("loading transitions (-want +got):\n%s", diff)
	}
	c.Close(ctx)
}

func TestController_AttachDetach(t *testing.T) {
	h := newHarness(t, 1000, constant(50))

	if _, err := h.c.Attach(nil); !errors.Is(err, errors.InvalidInput(errors.PhaseConfig, "")) {
		t.Errorf("Attach(nil) = %v, want invalid input", err)
	}

	if _, err := h.c.Attach(viewport.New(h.frames, 500)); !errors.Is(err, errors.ErrAlreadyAttached) {
		t.Errorf("second Attach = %v, want ErrAlreadyAttached", err)
	}

	h.detach()
	h.detach()
	if h.vp.Listeners() != 0 {
		t.Error("listener left after detach")
	}
	published := len(h.ranges)
	h.vp.ScrollTo(vrange.AxisVertical, 9000, vrange.BehaviorInstant)
	h.frames.Drain(10)
	if len(h.ranges) != published {
		t.Error("detached element still drives recomputes")
	}

	// A new element can be attached and publishes immediately.
	vp := viewport.New(h.frames, 500)
	vp.ScrollTo(vrange.AxisVertical, 2000, vrange.BehaviorInstant)
	detach, err := h.c.Attach(vp)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer detach()
	if r := h.c.Range(); r.StartIndex != 37 {
		t.Errorf("StartIndex = %d, want 37", r.StartIndex)
	}

	// A stale detach func does not unbind the new element.
	h.detach()
	if vp.Listeners() != 1 {
		t.Error("stale detach removed the new element")
	}
}

func TestController_AttachBeforeSetup(t *testing.T) {
	ctx := context.Background()
	q := frame.NewQueue()
	c, _ := New(newFakeGateway(), q, 1000, constant(50))
	defer c.Close(ctx)

	vp := viewport.New(q, 500)
	detach, err := c.Attach(vp)
	if err != nil {
		t.Fatal(err)
	}
	defer detach()
	vp.ScrollTo(vrange.AxisVertical, 1000, vrange.BehaviorInstant)
	q.Drain(10)
	if c.Range().Len() != 0 {
		t.Fatal("published before setup")
	}

	if err := c.Setup(ctx); err != nil {
		t.Fatal(err)
	}
	if r := c.Range(); r.StartIndex != 17 {
		t.Errorf("StartIndex = %d, want 17", r.StartIndex)
	}
}

func TestController_Horizontal(t *testing.T) {
	h := newHarness(t, 1000, constant(50), WithHorizontal(true))
	if h.c.Axis() != vrange.AxisHorizontal {
		t.Fatalf("Axis = %s", h.c.Axis())
	}

	h.vp.ScrollTo(vrange.AxisVertical, 5000, vrange.BehaviorInstant)
	h.frames.Drain(10)
	if r := h.c.Range(); r.StartIndex != 0 {
		t.Errorf("vertical scroll moved a horizontal list: start %d", r.StartIndex)
	}

	h.scroll(5000)
	if r := h.c.Range(); r.StartIndex != 97 {
		t.Errorf("StartIndex = %d, want 97", r.StartIndex)
	}
}

func TestController_WithRealGateway(t *testing.T) {
	ctx := context.Background()
	gw := gateway.New(gateway.WithBenchmarkOps(100))
	defer gw.Close(ctx)

	q := frame.NewQueue()
	c, err := New(gw, q, 10_000, alternating)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Setup(ctx); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	vp := viewport.New(q, 500)
	detach, _ := c.Attach(vp)
	defer detach()

	if err := c.ScrollToIndex(5000, vrange.BehaviorInstant); err != nil {
		t.Fatal(err)
	}
	q.Drain(10)
	r := c.Range()
	if !r.Contains(5000) || r.TotalHeight != 500_000 {
		t.Errorf("range = [%d, %d) total %v", r.StartIndex, r.EndIndex, r.TotalHeight)
	}

	if n := gw.Status().Stats.LiveHandles; n != 1 {
		t.Errorf("LiveHandles = %d, want 1", n)
	}
	if err := c.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if n := gw.Status().Stats.LiveHandles; n != 0 {
		t.Errorf("LiveHandles after Close = %d, want 0", n)
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		StateUninitialized: "uninitialized",
		StateLoading:       "loading",
		StateUniformReady:  "uniform-ready",
		StateVariableReady: "variable-ready",
		StateError:         "error",
		State(42):          "unknown",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
