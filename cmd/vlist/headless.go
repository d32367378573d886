package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/vrange"
	"github.com/wippyai/vrange/controller"
	"github.com/wippyai/vrange/frame"
	"github.com/wippyai/vrange/viewport"
)

const (
	headlessInterval = time.Millisecond
	sweepFrames      = 100
	// A scroll event is published two frames after it happens.
	settleFrames = 2
)

// summary is what a run reports to the stats file.
type summary struct {
	ranges     int
	multiplier float64
	uniform    bool
}

// runHeadless scrolls an in-memory viewport from top to bottom, one step
// per frame, and prints every range the controller publishes.
func runHeadless(ctx context.Context, gw controller.Gateway, cfg Config, logger *zap.Logger, out io.Writer) (summary, error) {
	var s summary

	loop := frame.NewLoop(headlessInterval, logger)
	defer loop.Close()

	axis := axisOf(cfg)
	vp := viewport.New(loop, 0)
	vp.SetExtent(axis, cfg.Viewport)

	ctrl, err := newController(gw, loop, cfg, logger)
	if err != nil {
		return s, err
	}
	defer ctrl.Close(ctx)

	if err := ctrl.Setup(ctx); err != nil {
		return s, err
	}

	var total float64
	ctrl.OnRange(func(r *vrange.VirtualRange) {
		s.ranges++
		total = r.TotalHeight
		vp.SetContentSize(axis, r.TotalHeight)
		fmt.Fprintf(out, "frame=%-6d pos=%-12.1f range=[%d,%d) padding=%.1f total=%.1f\n",
			loop.Frames(), vp.ScrollPosition(axis), r.StartIndex, r.EndIndex, r.PaddingTop, r.TotalHeight)
	})

	detach, err := ctrl.Attach(vp)
	if err != nil {
		return s, err
	}
	defer detach()

	step := cfg.Step
	settle := settleFrames
	var sweep func()
	sweep = func() {
		bottom := math.Max(0, total-cfg.Viewport)
		if vp.ScrollPosition(axis) >= bottom {
			if settle == 0 {
				loop.Close()
				return
			}
			settle--
			loop.RequestFrame(sweep)
			return
		}
		if step <= 0 {
			step = math.Max(1, bottom/sweepFrames)
		}
		vp.ScrollBy(axis, step)
		loop.RequestFrame(sweep)
	}
	loop.RequestFrame(sweep)

	if err := loop.Run(ctx); err != nil {
		return s, err
	}

	s.multiplier = ctrl.ScrollMultiplier()
	s.uniform = ctrl.IsUniform()
	fmt.Fprintf(out, "swept %d items in %d frames, %d ranges published\n", cfg.Items, loop.Frames(), s.ranges)
	return s, nil
}
