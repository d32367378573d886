// Package enginetest provides in-memory engine handles for tests.
//
// The fakes compute the same ranges as the wasm index module in plain Go
// and count how often they are freed, so tests can check the exactly-once
// release contract without a wazero runtime.
package enginetest

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/wippyai/vrange/engine"
	"github.com/wippyai/vrange/errors"
)

// Uniform is a fake engine.Uniform.
type Uniform struct {
	count int
	size  float64

	// Frees counts Free calls, including rejected ones.
	Frees int
	// RangeCalls counts CalcRange calls.
	RangeCalls int
}

var _ engine.Uniform = (*Uniform)(nil)

// NewUniform returns a fake over count items of size each.
func NewUniform(count int, size float64) *Uniform {
	return &Uniform{count: count, size: size}
}

func (u *Uniform) CalcRange(scroll, viewport float64, overscan int) (int, int, error) {
	if u.Frees > 0 {
		return 0, 0, errors.Released("uniform-range")
	}
	u.RangeCalls++
	if u.size <= 0 {
		return 0, 0, nil
	}
	overscan = max(overscan, 0)
	start := int(math.Floor(scroll/u.size)) - overscan
	end := int(math.Ceil((scroll+viewport)/u.size)) + overscan
	return clamp(start, u.count), clamp(end, u.count), nil
}

func (u *Uniform) OffsetOf(index int) (float64, error) {
	if u.Frees > 0 {
		return 0, errors.Released("uniform-offset")
	}
	if index < 0 || index > u.count {
		return 0, errors.OutOfBounds(errors.PhaseRuntime, "uniform-offset", index, u.count)
	}
	return float64(index) * u.size, nil
}

func (u *Uniform) SetCount(count int) error {
	if u.Frees > 0 {
		return errors.Released("uniform-set-count")
	}
	u.count = count
	return nil
}

func (u *Uniform) Count() int        { return u.count }
func (u *Uniform) ItemSize() float64 { return u.size }

func (u *Uniform) Free(context.Context) error {
	u.Frees++
	if u.Frees > 1 {
		return errors.Released("free")
	}
	return nil
}

// Variable is a fake engine.Variable backed by a prefix-sum slice.
type Variable struct {
	offsets []float64

	Frees      int
	RangeCalls int
}

var _ engine.Variable = (*Variable)(nil)

// NewVariable returns a fake over the given sizes.
func NewVariable(sizes []float64) *Variable {
	offsets := make([]float64, len(sizes)+1)
	for i, s := range sizes {
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			s = 0
		}
		offsets[i+1] = offsets[i] + s
	}
	return &Variable{offsets: offsets}
}

func (v *Variable) find(x float64) int {
	n := v.Count()
	i := sort.Search(n, func(i int) bool { return v.offsets[i] > x }) - 1
	return max(i, 0)
}

func (v *Variable) CalcRange(scroll, viewport float64, overscan int) (int, int, error) {
	if v.Frees > 0 {
		return 0, 0, errors.Released("variable-range")
	}
	v.RangeCalls++
	n := v.Count()
	if n == 0 {
		return 0, 0, nil
	}
	overscan = max(overscan, 0)
	start := v.find(scroll) - overscan
	end := v.find(scroll+viewport) + 1 + overscan
	return clamp(start, n), clamp(end, n), nil
}

func (v *Variable) OffsetOf(index int) (float64, error) {
	if v.Frees > 0 {
		return 0, errors.Released("variable-offset")
	}
	if index < 0 || index > v.Count() {
		return 0, errors.OutOfBounds(errors.PhaseRuntime, "variable-offset", index, v.Count())
	}
	return v.offsets[index], nil
}

func (v *Variable) SizeOf(index int) (float64, error) {
	if v.Frees > 0 {
		return 0, errors.Released("variable-size")
	}
	if index < 0 || index >= v.Count() {
		return 0, errors.OutOfBounds(errors.PhaseRuntime, "variable-size", index, v.Count())
	}
	return v.offsets[index+1] - v.offsets[index], nil
}

func (v *Variable) Count() int { return len(v.offsets) - 1 }

func (v *Variable) Free(context.Context) error {
	v.Frees++
	if v.Frees > 1 {
		return errors.Released("free")
	}
	return nil
}

func clamp(i, n int) int {
	return min(max(i, 0), n)
}

// Runtime is a fake gateway.Runtime that records every handle it creates.
type Runtime struct {
	// UniformErr and VariableErr, when set, fail the matching factory.
	UniformErr  error
	VariableErr error

	uniforms  []*Uniform
	variables []*Variable
	closes    int
	mu        sync.Mutex
}

// NewRuntime returns an empty fake runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

func (r *Runtime) NewUniform(_ context.Context, count int, itemSize float64) (engine.Uniform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UniformErr != nil {
		return nil, r.UniformErr
	}
	u := NewUniform(count, itemSize)
	r.uniforms = append(r.uniforms, u)
	return u, nil
}

func (r *Runtime) NewVariable(_ context.Context, sizes []float64) (engine.Variable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.VariableErr != nil {
		return nil, r.VariableErr
	}
	v := NewVariable(sizes)
	r.variables = append(r.variables, v)
	return v, nil
}

func (r *Runtime) Version() string { return "enginetest" }

// LiveHandles counts handles that were never freed.
func (r *Runtime) LiveHandles() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.uniforms {
		if u.Frees == 0 {
			n++
		}
	}
	for _, v := range r.variables {
		if v.Frees == 0 {
			n++
		}
	}
	return n
}

func (r *Runtime) Close(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	return nil
}

// Closes returns how often Close was called.
func (r *Runtime) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// Uniforms returns the uniform handles created so far.
func (r *Runtime) Uniforms() []*Uniform {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Uniform(nil), r.uniforms...)
}

// Variables returns the variable handles created so far.
func (r *Runtime) Variables() []*Variable {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Variable(nil), r.variables...)
}
