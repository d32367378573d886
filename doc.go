// Package vrange computes which items of a very long list must be rendered
// for the current scroll position.
//
// A list declares how many items it has and how tall each one is. The
// controller samples the sizes, picks a uniform or a variable index in a
// wasm engine, and on every coalesced scroll event publishes a
// VirtualRange: the window of items to render, their offsets, the padding
// above the window and the total content height.
//
// # Architecture Overview
//
//	vrange/              Shared types: VirtualRange, Axis, Behavior, scroll multiplier math
//	├── controller/      Range controller: setup, path selection, recompute, scroll commands
//	├── gateway/         Engine gateway: single-flight loading, status, handle factories
//	├── engine/          wazero index module host: uniform and variable handles
//	├── scheduler/       Two-frame scroll coalescing
//	├── frame/           Frame sources: a hand-stepped Queue and a ticker-driven Loop
//	├── viewport/        In-memory scrollable element with smooth scrolling
//	├── signal/          Observable values for published state
//	├── resource/        Handle table with exactly-once release
//	├── errors/          Structured error types
//	└── cmd/vlist/       Terminal and headless demo consumer
//
// # Quick Start
//
//	q := frame.NewQueue()
//	ctrl, err := controller.New(nil, q, 1_000_000, func(i int) float64 { return 50 })
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ctrl.Close(ctx)
//
//	if err := ctrl.Setup(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	ctrl.OnRange(func(r *vrange.VirtualRange) {
//	    render(r.Items, r.PaddingTop, r.TotalHeight)
//	})
//
//	detach, err := ctrl.Attach(element)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer detach()
//
// Step q (or run a frame.Loop) once per display frame; scroll events are
// recomputed two frames after they happen.
//
// # Very Long Lists
//
// Content taller than MaxSafeScrollHeight is compressed: the element is
// given a total height of MaxSafeScrollHeight and every scroll position is
// multiplied by ScrollMultiplier before it reaches the engine. Item sizes
// inside the window are not scaled.
//
// # Thread Safety
//
// The gateway is safe for concurrent use. A Controller, its scheduler and
// a Viewport belong to the goroutine that runs their frame source.
package vrange
