package engine

import (
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/vrange/engine/internal/wasmgen"
)

// Variable-size memory layout: the prefix sum of item i lives at
// address 8*i, so 8*(n+1) bytes hold n items plus the total.
const (
	slotBytes = 8
	pageBytes = 65536
)

var (
	indexModuleOnce sync.Once
	indexModuleBin  []byte
	indexModuleErr  error
)

// IndexModule returns the binary of the position-index module. The module
// is generated once per process.
func IndexModule() ([]byte, error) {
	indexModuleOnce.Do(func() {
		indexModuleBin, indexModuleErr = buildIndexModule()
	})
	return indexModuleBin, indexModuleErr
}

func buildIndexModule() ([]byte, error) {
	m := wasmgen.NewModule()
	m.Memory(1, MemoryExport)

	count := m.GlobalF64(0)
	size := m.GlobalF64(0)

	fns := make(map[string]*wasmgen.Func, len(ABI))
	for _, e := range ABI {
		params, results, err := e.Lower()
		if err != nil {
			return nil, err
		}
		fns[e.Name] = m.Func(e.Name, params, results)
	}

	// uniform-init(count, size)
	fns[ExportUniformInit].
		LocalGet(0).GlobalSet(count).
		LocalGet(1).GlobalSet(size)

	// uniform-set-count(count)
	fns[ExportUniformSetCount].
		LocalGet(0).GlobalSet(count)

	// uniform-offset(i) = i * size
	fns[ExportUniformOffset].
		LocalGet(0).GlobalGet(size).Op(wasmgen.F64Mul)

	// uniform-range(scroll, viewport, overscan) -> (start, end)
	ur := fns[ExportUniformRange]
	ur.GlobalGet(size).F64Const(0).Op(wasmgen.F64Le).
		If().F64Const(0).F64Const(0).Return().End()
	ur.F64Const(0).
		LocalGet(0).GlobalGet(size).Op(wasmgen.F64Div, wasmgen.F64Floor).
		LocalGet(2).Op(wasmgen.F64Sub, wasmgen.F64Max).
		GlobalGet(count).Op(wasmgen.F64Min)
	ur.LocalGet(0).LocalGet(1).Op(wasmgen.F64Add).
		GlobalGet(size).Op(wasmgen.F64Div, wasmgen.F64Ceil).
		LocalGet(2).Op(wasmgen.F64Add).
		GlobalGet(count).Op(wasmgen.F64Min).
		F64Const(0).Op(wasmgen.F64Max)

	// variable-build(n): sizes at 8*(i+1) become prefix sums, mem[0] = 0
	vb := fns[ExportVariableBuild]
	i := vb.Local(api.ValueTypeI32)
	acc := vb.Local(api.ValueTypeF64)
	limit := vb.Local(api.ValueTypeI32)
	vb.LocalGet(0).GlobalSet(count)
	vb.I32Const(0).F64Const(0).F64Store(0)
	vb.LocalGet(0).Op(wasmgen.I32TruncF64U).LocalSet(limit)
	vb.I32Const(1).LocalSet(i)
	vb.Block().Loop()
	vb.LocalGet(i).LocalGet(limit).Op(wasmgen.I32GtU).BrIf(1)
	vb.LocalGet(i).I32Const(3).Op(wasmgen.I32Shl)
	vb.LocalGet(acc).
		LocalGet(i).I32Const(3).Op(wasmgen.I32Shl).F64Load(0).
		Op(wasmgen.F64Add).LocalTee(acc)
	vb.F64Store(0)
	vb.LocalGet(i).I32Const(1).Op(wasmgen.I32Add).LocalSet(i)
	vb.Br(0)
	vb.End().End()

	// variable-offset(i) = mem[8i]
	fns[ExportVariableOffset].
		LocalGet(0).Op(wasmgen.I32TruncF64U).I32Const(3).Op(wasmgen.I32Shl).F64Load(0)

	// variable-size(i) = mem[8i+8] - mem[8i]
	vs := fns[ExportVariableSize]
	addr := vs.Local(api.ValueTypeI32)
	vs.LocalGet(0).Op(wasmgen.I32TruncF64U).I32Const(3).Op(wasmgen.I32Shl).LocalTee(addr).
		F64Load(slotBytes).
		LocalGet(addr).F64Load(0).
		Op(wasmgen.F64Sub)

	// variable-find(x): last index in [0, n) whose offset <= x
	vf := fns[ExportVariableFind]
	lo := vf.Local(api.ValueTypeI32)
	hi := vf.Local(api.ValueTypeI32)
	mid := vf.Local(api.ValueTypeI32)
	vf.GlobalGet(count).F64Const(1).Op(wasmgen.F64Lt).
		If().F64Const(0).Return().End()
	vf.I32Const(0).LocalSet(lo)
	vf.GlobalGet(count).Op(wasmgen.I32TruncF64U).I32Const(1).Op(wasmgen.I32Sub).LocalSet(hi)
	vf.Block().Loop()
	vf.LocalGet(lo).LocalGet(hi).Op(wasmgen.I32GeU).BrIf(1)
	vf.LocalGet(lo).LocalGet(hi).Op(wasmgen.I32Add).
		I32Const(1).Op(wasmgen.I32Add).
		I32Const(1).Op(wasmgen.I32ShrU).LocalSet(mid)
	vf.LocalGet(mid).I32Const(3).Op(wasmgen.I32Shl).F64Load(0).
		LocalGet(0).Op(wasmgen.F64Le)
	vf.If().
		LocalGet(mid).LocalSet(lo).
		Else().
		LocalGet(mid).I32Const(1).Op(wasmgen.I32Sub).LocalSet(hi).
		End()
	vf.Br(0)
	vf.End().End()
	vf.LocalGet(lo).Op(wasmgen.F64ConvertI32U)

	// variable-range(scroll, viewport, overscan) -> (start, end)
	vr := fns[ExportVariableRange]
	vr.GlobalGet(count).F64Const(1).Op(wasmgen.F64Lt).
		If().F64Const(0).F64Const(0).Return().End()
	vr.F64Const(0).
		LocalGet(0).Call(vf).
		LocalGet(2).Op(wasmgen.F64Sub, wasmgen.F64Max)
	vr.LocalGet(0).LocalGet(1).Op(wasmgen.F64Add).Call(vf).
		F64Const(1).Op(wasmgen.F64Add).
		LocalGet(2).Op(wasmgen.F64Add).
		GlobalGet(count).Op(wasmgen.F64Min)

	return m.Encode(), nil
}

// pagesFor returns how many 64KiB pages hold n variable-size items.
func pagesFor(n int) uint32 {
	bytes := uint64(n+1) * slotBytes
	return uint32((bytes + pageBytes - 1) / pageBytes)
}
