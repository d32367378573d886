package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/wippyai/vrange"
	"github.com/wippyai/vrange/errors"
	"github.com/wippyai/vrange/gateway"
)

// Size modes.
const (
	ModeUniform  = "uniform"
	ModeVariable = "variable"
)

// Config holds every vlist setting. It can come from a JSONC file and is
// overridden by flags.
type Config struct {
	Mode             string    `json:"mode"`
	StatsOut         string    `json:"stats_out,omitempty"` //nolint:tagliatelle // snake_case for config file
	Sizes            []float64 `json:"sizes"`
	Items            int       `json:"items"`
	Overscan         int       `json:"overscan"`
	Viewport         float64   `json:"viewport"`
	Step             float64   `json:"step"`
	BenchmarkOps     int       `json:"benchmark_ops"`      //nolint:tagliatelle // snake_case for config file
	MemoryLimitPages uint32    `json:"memory_limit_pages"` //nolint:tagliatelle // snake_case for config file
	Horizontal       bool      `json:"horizontal"`
}

// DefaultConfig returns the configuration used when neither a file nor a
// flag sets a value.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeVariable,
		Sizes:        []float64{1, 2, 1, 3},
		Items:        1_000_000,
		Overscan:     vrange.DefaultOverscan,
		Viewport:     24,
		BenchmarkOps: gateway.DefaultBenchmarkOps,
	}
}

// SizeAt returns the size of item i: Sizes[0] in uniform mode, otherwise
// Sizes cycled over the item indices.
func (c Config) SizeAt(i int) float64 {
	if c.Mode == ModeUniform || len(c.Sizes) == 1 {
		return c.Sizes[0]
	}
	return c.Sizes[i%len(c.Sizes)]
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Mode != ModeUniform && c.Mode != ModeVariable:
		return configError("mode", c.Mode, "must be %q or %q", ModeUniform, ModeVariable)
	case c.Items < 0:
		return configError("items", c.Items, "must be >= 0")
	case c.Overscan < 0:
		return configError("overscan", c.Overscan, "must be >= 0")
	case len(c.Sizes) == 0:
		return configError("sizes", nil, "at least one size is required")
	case c.Viewport <= 0:
		return configError("viewport", c.Viewport, "must be > 0")
	case c.Step < 0:
		return configError("step", c.Step, "must be >= 0")
	case c.BenchmarkOps < 0:
		return configError("benchmark_ops", c.BenchmarkOps, "must be >= 0")
	}
	for i, s := range c.Sizes {
		if !(s > 0) {
			return configError(fmt.Sprintf("sizes[%d]", i), s, "must be > 0")
		}
	}
	return nil
}

func configError(path string, value any, format string, args ...any) error {
	b := errors.New(errors.PhaseConfig, errors.KindInvalidInput).Path(path).Detail(format, args...)
	if value != nil {
		b = b.Value(value)
	}
	return b.Build()
}

// LoadConfigFile reads a JSONC config file over base. Fields missing from
// the file keep their base value.
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		return base, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(data, base)
}

func parseConfig(data []byte, base Config) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return base, fmt.Errorf("invalid JSONC: %w", err)
	}

	cfg := base
	// A sizes array in the file replaces the default pattern instead of
	// being merged into it.
	cfg.Sizes = nil
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return base, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Sizes == nil {
		cfg.Sizes = base.Sizes
	}
	return cfg, nil
}

// flags binds the command line to a Config. Only flags the user set
// override the file.
type flags struct {
	fs     *flag.FlagSet
	values Config

	config   string
	headless bool
	verbose  bool
}

func newFlags() *flags {
	f := &flags{fs: flag.NewFlagSet("vlist", flag.ContinueOnError)}
	d := DefaultConfig()
	fs := f.fs
	fs.StringVarP(&f.config, "config", "c", "", "JSONC config file")
	fs.BoolVar(&f.headless, "headless", false, "Sweep the list without a terminal UI and print each range")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "Development logging to stderr")
	fs.StringVar(&f.values.Mode, "mode", d.Mode, "Size mode: uniform or variable")
	fs.Float64SliceVar(&f.values.Sizes, "sizes", d.Sizes, "Item sizes in rows, cycled over the items")
	fs.IntVarP(&f.values.Items, "items", "n", d.Items, "Number of items")
	fs.IntVar(&f.values.Overscan, "overscan", d.Overscan, "Extra items beyond each viewport edge")
	fs.BoolVar(&f.values.Horizontal, "horizontal", d.Horizontal, "Scroll the horizontal axis")
	fs.Float64Var(&f.values.Viewport, "viewport", d.Viewport, "Headless viewport extent in rows")
	fs.Float64Var(&f.values.Step, "step", d.Step, "Headless scroll step per frame, 0 sweeps the list in 100 frames")
	fs.IntVar(&f.values.BenchmarkOps, "benchmark-ops", d.BenchmarkOps, "Range queries run after the engine loads")
	fs.Uint32Var(&f.values.MemoryLimitPages, "memory-pages", d.MemoryLimitPages, "Engine memory limit per handle in 64KiB pages")
	fs.StringVar(&f.values.StatsOut, "stats-out", d.StatsOut, "Write engine stats as JSON to this file on exit")
	return f
}

func (f *flags) parse(args []string) error {
	return f.fs.Parse(args)
}

// resolve applies defaults, then the config file, then the flags that were
// set, and validates the result.
func (f *flags) resolve() (Config, error) {
	cfg := DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = LoadConfigFile(f.config, cfg); err != nil {
			return Config{}, err
		}
	}

	v := f.values
	overrides := map[string]func(){
		"mode":          func() { cfg.Mode = v.Mode },
		"sizes":         func() { cfg.Sizes = v.Sizes },
		"items":         func() { cfg.Items = v.Items },
		"overscan":      func() { cfg.Overscan = v.Overscan },
		"horizontal":    func() { cfg.Horizontal = v.Horizontal },
		"viewport":      func() { cfg.Viewport = v.Viewport },
		"step":          func() { cfg.Step = v.Step },
		"benchmark-ops": func() { cfg.BenchmarkOps = v.BenchmarkOps },
		"memory-pages":  func() { cfg.MemoryLimitPages = v.MemoryLimitPages },
		"stats-out":     func() { cfg.StatsOut = v.StatsOut },
	}
	f.fs.Visit(func(fl *flag.Flag) {
		if apply, ok := overrides[fl.Name]; ok {
			apply()
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
