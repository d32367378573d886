package gateway

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/vrange/engine"
	"github.com/wippyai/vrange/errors"
)

// Status is the engine lifecycle state.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusInitializing Status = "initializing"
	StatusReady        Status = "ready"
	StatusError        Status = "error"
)

// Benchmark defaults: range queries against a disposable probe handle.
const (
	DefaultBenchmarkOps = 10_000
	probeCount          = 100_000
	probeItemSize       = 50
	probeViewport       = 1_000
)

// Stats are recorded once the engine is ready.
type Stats struct {
	Version           string        `json:"version"`
	InitDuration      time.Duration `json:"init_duration_ns"`
	BenchmarkDuration time.Duration `json:"benchmark_duration_ns"`
	BenchmarkOps      int           `json:"benchmark_ops"`
	OpsPerSecond      float64       `json:"ops_per_second"`
	LiveHandles       int           `json:"live_handles"`
}

// Snapshot is a read-only copy of the gateway state.
type Snapshot struct {
	Err    error  `json:"-"`
	Status Status `json:"status"`
	Stats  Stats  `json:"stats"`
}

// Runtime is the loaded engine. *engine.Runtime implements it.
type Runtime interface {
	NewUniform(ctx context.Context, count int, itemSize float64) (engine.Uniform, error)
	NewVariable(ctx context.Context, sizes []float64) (engine.Variable, error)
	Version() string
	LiveHandles() int
	Close(ctx context.Context) error
}

// Loader loads the engine runtime.
type Loader func(ctx context.Context) (Runtime, error)

// call is one in-flight initialization shared by every concurrent caller.
type call struct {
	done chan struct{}
	err  error
}

// Gateway loads the engine at most once concurrently and hands out
// handles once it is ready. A failed load is not cached: the next
// Initialize runs the loader again.
type Gateway struct {
	loader   Loader
	logger   *zap.Logger
	rt       Runtime
	err      error
	inflight *call
	status   Status
	stats    Stats
	benchOps int
	mu       sync.Mutex
}

// New creates an idle gateway.
func New(opts ...Option) *Gateway {
	o := options{benchOps: DefaultBenchmarkOps}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.loader == nil {
		o.loader = engineLoader(o.engineCfg)
	}
	return &Gateway{
		loader:   o.loader,
		logger:   o.logger,
		benchOps: o.benchOps,
		status:   StatusIdle,
	}
}

var (
	defaultOnce    sync.Once
	defaultGateway *Gateway
)

// Default returns the process-wide gateway backed by the wazero engine.
func Default() *Gateway {
	defaultOnce.Do(func() {
		defaultGateway = New()
	})
	return defaultGateway
}

func engineLoader(cfg *engine.Config) Loader {
	return func(ctx context.Context) (Runtime, error) {
		rt, err := engine.NewRuntime(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return rt, nil
	}
}

// Initialize loads the engine. Concurrent callers share one load; callers
// after a successful load return immediately. ctx bounds only the wait:
// the load itself runs to completion for the other callers.
func (g *Gateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	if g.status == StatusReady {
		g.mu.Unlock()
		return nil
	}
	c := g.inflight
	if c == nil {
		c = &call{done: make(chan struct{})}
		g.inflight = c
		g.setStatus(StatusInitializing)
		go g.load(context.WithoutCancel(ctx), c)
	}
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) load(ctx context.Context, c *call) {
	start := time.Now()
	rt, err := g.loader(ctx)
	initDuration := time.Since(start)

	var stats Stats
	if err == nil {
		stats, err = g.benchmark(ctx, rt)
		if err != nil {
			rt.Close(ctx)
		}
	}
	if err != nil && !errors.Is(err, errors.ErrEngineLoad) {
		err = errors.EngineLoad(err)
	}

	g.mu.Lock()
	g.inflight = nil
	if err != nil {
		g.err = err
		g.logger.Error("engine load failed", zap.Error(err))
		g.setStatus(StatusError)
	} else {
		stats.InitDuration = initDuration
		stats.Version = rt.Version()
		g.rt = rt
		g.err = nil
		g.stats = stats
		g.setStatus(StatusReady)
	}
	c.err = err
	g.mu.Unlock()

	close(c.done)
}

func (g *Gateway) benchmark(ctx context.Context, rt Runtime) (Stats, error) {
	if g.benchOps <= 0 {
		return Stats{}, nil
	}
	probe, err := rt.NewUniform(ctx, probeCount, probeItemSize)
	if err != nil {
		return Stats{}, err
	}
	defer probe.Free(ctx)

	start := time.Now()
	for i := range g.benchOps {
		scroll := float64(i%probeCount) * probeItemSize
		if _, _, err := probe.CalcRange(scroll, probeViewport, 3); err != nil {
			return Stats{}, err
		}
	}
	elapsed := time.Since(start)

	stats := Stats{
		BenchmarkOps:      g.benchOps,
		BenchmarkDuration: elapsed,
	}
	if elapsed > 0 {
		stats.OpsPerSecond = float64(g.benchOps) / elapsed.Seconds()
	}
	g.logger.Info("engine benchmark",
		zap.Int("ops", stats.BenchmarkOps),
		zap.Duration("duration", stats.BenchmarkDuration),
		zap.Float64("ops_per_second", stats.OpsPerSecond))
	return stats, nil
}

// setStatus must be called with g.mu held.
func (g *Gateway) setStatus(s Status) {
	if g.status == s {
		return
	}
	g.logger.Info("engine status", zap.String("from", string(g.status)), zap.String("to", string(s)))
	g.status = s
}

// Status returns a snapshot of the current state.
func (g *Gateway) Status() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := Snapshot{Status: g.status, Err: g.err, Stats: g.stats}
	if g.rt != nil {
		snap.Stats.LiveHandles = g.rt.LiveHandles()
	}
	return snap
}

func (g *Gateway) ready(op string) (Runtime, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusReady {
		return nil, errors.NotReady(op, string(g.status))
	}
	return g.rt, nil
}

// CreateUniformHandle returns a handle over count items of itemSize each.
func (g *Gateway) CreateUniformHandle(ctx context.Context, count int, itemSize float64) (engine.Uniform, error) {
	rt, err := g.ready("create-uniform-handle")
	if err != nil {
		return nil, err
	}
	return rt.NewUniform(ctx, count, itemSize)
}

// CreateVariableHandle returns a handle over items with the given sizes.
func (g *Gateway) CreateVariableHandle(ctx context.Context, sizes []float64) (engine.Variable, error) {
	rt, err := g.ready("create-variable-handle")
	if err != nil {
		return nil, err
	}
	return rt.NewVariable(ctx, sizes)
}

// Close waits for an in-flight load, closes the runtime and returns the
// gateway to idle. Handles still live are freed by the runtime.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	c := g.inflight
	g.mu.Unlock()
	if c != nil {
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	g.mu.Lock()
	rt := g.rt
	g.rt = nil
	g.err = nil
	g.stats = Stats{}
	g.setStatus(StatusIdle)
	g.mu.Unlock()

	if rt == nil {
		return nil
	}
	return rt.Close(ctx)
}
