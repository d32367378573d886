// Command vlist drives the virtualization range controller over a synthetic
// list, either in a terminal UI or as a headless top-to-bottom sweep.
package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/vrange"
	"github.com/wippyai/vrange/controller"
	"github.com/wippyai/vrange/engine"
	"github.com/wippyai/vrange/errors"
	"github.com/wippyai/vrange/frame"
	"github.com/wippyai/vrange/gateway"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout *os.File) error {
	f := newFlags()
	if err := f.parse(args); err != nil {
		return err
	}
	cfg, err := f.resolve()
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if f.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
	}
	engine.SetLogger(logger)

	gw := gateway.New(
		gateway.WithLogger(logger),
		gateway.WithEngineConfig(&engine.Config{MemoryLimitPages: cfg.MemoryLimitPages}),
		gateway.WithBenchmarkOps(cfg.BenchmarkOps),
	)
	defer gw.Close(ctx)

	var s summary
	if f.headless || !term.IsTerminal(int(stdout.Fd())) {
		s, err = runHeadless(ctx, gw, cfg, logger, stdout)
	} else {
		s, err = runInteractive(ctx, gw, cfg, logger, stdout)
	}

	if cfg.StatsOut != "" {
		if werr := writeStats(cfg.StatsOut, newStatsFile(gw.Status(), cfg, s)); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func newStatsFile(snap gateway.Snapshot, cfg Config, s summary) statsFile {
	return statsFile{
		Snapshot:   snap,
		Mode:       cfg.Mode,
		Items:      cfg.Items,
		Ranges:     s.ranges,
		Uniform:    s.uniform,
		Multiplier: s.multiplier,
	}
}

func axisOf(cfg Config) vrange.Axis {
	if cfg.Horizontal {
		return vrange.AxisHorizontal
	}
	return vrange.AxisVertical
}

func newController(gw controller.Gateway, src frame.Source, cfg Config, logger *zap.Logger) (*controller.Controller, error) {
	return controller.New(gw, src, cfg.Items, cfg.SizeAt,
		controller.WithOverscan(cfg.Overscan),
		controller.WithHorizontal(cfg.Horizontal),
		controller.WithLogger(logger),
	)
}
