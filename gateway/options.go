package gateway

import (
	"go.uber.org/zap"

	"github.com/wippyai/vrange/engine"
)

type options struct {
	loader    Loader
	logger    *zap.Logger
	engineCfg *engine.Config
	benchOps  int
}

// Option configures a Gateway.
type Option func(*options)

// WithLoader replaces the wazero engine loader.
func WithLoader(l Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithLogger sets the logger for status transitions and the benchmark.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEngineConfig configures the default loader. It has no effect when
// WithLoader is also given.
func WithEngineConfig(cfg *engine.Config) Option {
	return func(o *options) { o.engineCfg = cfg }
}

// WithBenchmarkOps sets the number of range queries run against the probe
// handle after a load. 0 skips the benchmark.
func WithBenchmarkOps(n int) Option {
	return func(o *options) { o.benchOps = n }
}
