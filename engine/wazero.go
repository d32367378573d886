package engine

import (
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/vrange/errors"
	"github.com/wippyai/vrange/resource"
)

// Version tags the generated index module.
const Version = "vrange-index/1.0.0"

const (
	kindUniform  resource.Kind = "uniform"
	kindVariable resource.Kind = "variable"
)

// Config holds configuration for runtime creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per handle in pages (64KB each).
	// 0 means the wazero default. A variable handle over n items needs
	// 8*(n+1) bytes.
	MemoryLimitPages uint32
}

// Runtime hosts the compiled index module and creates one instance per
// handle. Every handle is tracked so that Close can free the ones that
// were never released.
type Runtime struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	handles  *resource.Table
	closed   atomic.Bool
}

// NewRuntime compiles the index module and validates its exports.
func NewRuntime(ctx context.Context, cfg *Config) (*Runtime, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	bin, err := IndexModule()
	if err != nil {
		return nil, errors.EngineLoad(err)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		r.Close(ctx)
		return nil, errors.EngineLoad(err)
	}
	if err := ValidateExports(compiled.ExportedFunctions()); err != nil {
		r.Close(ctx)
		return nil, errors.EngineLoad(err)
	}

	return &Runtime{
		runtime:  r,
		compiled: compiled,
		handles:  resource.NewTable(),
	}, nil
}

// Version returns the index module version.
func (r *Runtime) Version() string {
	return Version
}

// LiveHandles returns the number of handles not yet freed.
func (r *Runtime) LiveHandles() int {
	return r.handles.Len()
}

// Handles exposes the handle table for lifecycle observers.
func (r *Runtime) Handles() *resource.Table {
	return r.handles
}

// NewUniform creates a handle over count items of itemSize each.
func (r *Runtime) NewUniform(ctx context.Context, count int, itemSize float64) (Uniform, error) {
	if count < 0 {
		return nil, errors.InvalidInput(errors.PhaseSetup, "negative item count")
	}
	inst, err := r.instantiate(ctx, kindUniform)
	if err != nil {
		return nil, err
	}
	size := sanitize(itemSize)
	if err := inst.call(ctx, ExportUniformInit, float64(count), size); err != nil {
		inst.free(ctx)
		return nil, err
	}
	return &uniformHandle{instance: inst, count: count, size: size}, nil
}

// NewVariable creates a handle over items with the given sizes. Sizes that
// are negative or not finite count as 0.
func (r *Runtime) NewVariable(ctx context.Context, sizes []float64) (Variable, error) {
	inst, err := r.instantiate(ctx, kindVariable)
	if err != nil {
		return nil, err
	}

	n := len(sizes)
	mem := inst.mod.ExportedMemory(MemoryExport)
	if mem == nil {
		inst.free(ctx)
		return nil, errors.ABIMismatch(MemoryExport, "export missing")
	}
	need := pagesFor(n)
	if have := mem.Size() / pageBytes; need > have {
		if _, ok := mem.Grow(need - have); !ok {
			inst.free(ctx)
			return nil, errors.New(errors.PhaseSetup, errors.KindInstantiation).
				Op("grow").
				Value(n).
				Detail("cannot grow memory to %d pages for %d items", need, n).
				Build()
		}
	}

	buf := make([]byte, n*slotBytes)
	for i, s := range sizes {
		binary.LittleEndian.PutUint64(buf[i*slotBytes:], math.Float64bits(sanitize(s)))
	}
	if !mem.Write(slotBytes, buf) {
		inst.free(ctx)
		return nil, errors.OutOfBounds(errors.PhaseSetup, "write sizes", n, int(mem.Size()/slotBytes))
	}
	if err := inst.call(ctx, ExportVariableBuild, float64(n)); err != nil {
		inst.free(ctx)
		return nil, err
	}
	return &variableHandle{instance: inst, count: n}, nil
}

// Close frees every live handle and shuts the wazero runtime down.
func (r *Runtime) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := r.handles.Close(ctx)
	if cerr := r.runtime.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

func (r *Runtime) instantiate(ctx context.Context, kind resource.Kind) (*instance, error) {
	if r.closed.Load() {
		return nil, errors.Instantiation(resource.ErrClosed)
	}
	// Anonymous so that any number of handles can coexist.
	mod, err := r.runtime.InstantiateModule(ctx, r.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	inst := &instance{
		mod:   mod,
		table: r.handles,
		stack: make([]uint64, maxFlat),
		fns:   make(map[string]api.Function, len(ABI)),
	}
	for _, e := range ABI {
		inst.fns[e.Name] = mod.ExportedFunction(e.Name)
	}

	h, err := r.handles.Insert(kind, inst)
	if err != nil {
		mod.Close(ctx)
		return nil, errors.Instantiation(err)
	}
	inst.handle = h
	return inst, nil
}

// instance is one module instance backing one handle. It reuses a single
// call stack and is not safe for concurrent use.
type instance struct {
	mod      api.Module
	table    *resource.Table
	fns      map[string]api.Function
	stack    []uint64
	handle   resource.Handle
	released atomic.Bool
}

// Release implements resource.Releaser.
func (i *instance) Release(ctx context.Context) error {
	i.released.Store(true)
	return i.mod.Close(ctx)
}

func (i *instance) free(ctx context.Context) error {
	err := i.table.Release(ctx, i.handle)
	if errors.Is(err, resource.ErrUnknown) {
		return errors.Released("free")
	}
	Logger().Debug("engine handle released", zap.Uint32("handle", uint32(i.handle)))
	return err
}

// call invokes an export with f64 arguments. Results are left at the front
// of i.stack.
func (i *instance) call(ctx context.Context, name string, args ...float64) error {
	if i.released.Load() {
		return errors.Released(name)
	}
	for n, a := range args {
		i.stack[n] = api.EncodeF64(a)
	}
	if err := i.fns[name].CallWithStack(ctx, i.stack); err != nil {
		Logger().Warn("engine call trapped", zap.String("export", name), zap.Error(err))
		return errors.Trap(name, err)
	}
	return nil
}

func (i *instance) result(n int) float64 {
	return api.DecodeF64(i.stack[n])
}

func (i *instance) calcRange(export string, scroll, viewport float64, overscan, count int) (int, int, error) {
	if math.IsNaN(scroll) || math.IsNaN(viewport) {
		return 0, 0, errors.InvalidInput(errors.PhaseRuntime, "scroll and viewport must be numbers")
	}
	if overscan < 0 {
		overscan = 0
	}
	if err := i.call(context.Background(), export, scroll, viewport, float64(overscan)); err != nil {
		return 0, 0, err
	}
	start := clampIndex(i.result(0), count)
	end := clampIndex(i.result(1), count)
	if start > end {
		start = end
	}
	return start, end, nil
}

type uniformHandle struct {
	*instance
	count int
	size  float64
}

func (u *uniformHandle) CalcRange(scroll, viewport float64, overscan int) (int, int, error) {
	return u.calcRange(ExportUniformRange, scroll, viewport, overscan, u.count)
}

func (u *uniformHandle) OffsetOf(index int) (float64, error) {
	if index < 0 || index > u.count {
		return 0, errors.OutOfBounds(errors.PhaseRuntime, ExportUniformOffset, index, u.count)
	}
	if err := u.call(context.Background(), ExportUniformOffset, float64(index)); err != nil {
		return 0, err
	}
	return u.result(0), nil
}

func (u *uniformHandle) SetCount(count int) error {
	if count < 0 {
		return errors.InvalidInput(errors.PhaseRuntime, "negative item count")
	}
	if err := u.call(context.Background(), ExportUniformSetCount, float64(count)); err != nil {
		return err
	}
	u.count = count
	return nil
}

func (u *uniformHandle) Count() int                     { return u.count }
func (u *uniformHandle) ItemSize() float64              { return u.size }
func (u *uniformHandle) Free(ctx context.Context) error { return u.free(ctx) }

type variableHandle struct {
	*instance
	count int
}

func (v *variableHandle) CalcRange(scroll, viewport float64, overscan int) (int, int, error) {
	return v.calcRange(ExportVariableRange, scroll, viewport, overscan, v.count)
}

func (v *variableHandle) OffsetOf(index int) (float64, error) {
	if index < 0 || index > v.count {
		return 0, errors.OutOfBounds(errors.PhaseRuntime, ExportVariableOffset, index, v.count)
	}
	if err := v.call(context.Background(), ExportVariableOffset, float64(index)); err != nil {
		return 0, err
	}
	return v.result(0), nil
}

func (v *variableHandle) SizeOf(index int) (float64, error) {
	if index < 0 || index >= v.count {
		return 0, errors.OutOfBounds(errors.PhaseRuntime, ExportVariableSize, index, v.count)
	}
	if err := v.call(context.Background(), ExportVariableSize, float64(index)); err != nil {
		return 0, err
	}
	return v.result(0), nil
}

func (v *variableHandle) Count() int                     { return v.count }
func (v *variableHandle) Free(ctx context.Context) error { return v.free(ctx) }

// sanitize coerces sizes that cannot take part in a prefix sum to 0.
func sanitize(size float64) float64 {
	if math.IsNaN(size) || math.IsInf(size, 0) || size < 0 {
		return 0
	}
	return size
}

func clampIndex(v float64, count int) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= float64(count):
		return count
	default:
		return int(v)
	}
}
