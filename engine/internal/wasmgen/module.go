// Package wasmgen builds small core wasm modules directly in Go.
//
// It covers the subset the position-index engine needs: one linear memory,
// mutable numeric globals, and exported functions with structured control
// flow. Functions are written with a chainable instruction emitter:
//
//	m := wasmgen.NewModule()
//	m.Memory(1, "memory")
//	size := m.GlobalF64(0)
//	f := m.Func("offset", []api.ValueType{api.ValueTypeF64}, []api.ValueType{api.ValueTypeF64})
//	f.LocalGet(0).GlobalGet(size).Op(wasmgen.F64Mul)
//	bin := m.Encode()
package wasmgen

import (
	"slices"

	"github.com/tetratelabs/wazero/api"
)

const (
	sectionType   = 0x01
	sectionFunc   = 0x03
	sectionMemory = 0x05
	sectionGlobal = 0x06
	sectionExport = 0x07
	sectionCode   = 0x0a

	exportFunc   = 0x00
	exportMemory = 0x02

	funcTypeMarker = 0x60
)

type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

type global struct {
	typ     api.ValueType
	init    float64
	mutable bool
}

// Module is a wasm module under construction.
type Module struct {
	memExport string
	types     []signature
	funcs     []*Func
	globals   []global
	memMin    uint32
	hasMemory bool
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{}
}

// Memory declares the single linear memory with no maximum and exports it
// under name when name is non-empty.
func (m *Module) Memory(minPages uint32, name string) {
	m.hasMemory = true
	m.memMin = minPages
	m.memExport = name
}

// GlobalF64 declares a mutable f64 global and returns its index.
func (m *Module) GlobalF64(init float64) uint32 {
	m.globals = append(m.globals, global{typ: api.ValueTypeF64, init: init, mutable: true})
	return uint32(len(m.globals) - 1)
}

// GlobalI32 declares a mutable i32 global and returns its index.
func (m *Module) GlobalI32(init int32) uint32 {
	m.globals = append(m.globals, global{typ: api.ValueTypeI32, init: float64(init), mutable: true})
	return uint32(len(m.globals) - 1)
}

// Func declares a function. A non-empty name exports it.
func (m *Module) Func(name string, params, results []api.ValueType) *Func {
	f := &Func{
		name:    name,
		index:   uint32(len(m.funcs)),
		typeIdx: m.typeIndex(params, results),
		nparams: uint32(len(params)),
	}
	m.funcs = append(m.funcs, f)
	return f
}

func (m *Module) typeIndex(params, results []api.ValueType) uint32 {
	for i, sig := range m.types {
		if slices.Equal(sig.params, params) && slices.Equal(sig.results, results) {
			return uint32(i)
		}
	}
	m.types = append(m.types, signature{
		params:  slices.Clone(params),
		results: slices.Clone(results),
	})
	return uint32(len(m.types) - 1)
}

// Encode returns the binary module.
func (m *Module) Encode() []byte {
	out := &Buffer{}

	// Magic and version
	out.AppendByte(0x00, 0x61, 0x73, 0x6d)
	out.AppendByte(0x01, 0x00, 0x00, 0x00)

	if len(m.types) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.types)))
		for _, sig := range m.types {
			sec.AppendByte(funcTypeMarker)
			sec.WriteU32(uint32(len(sig.params)))
			for _, p := range sig.params {
				sec.AppendByte(p)
			}
			sec.WriteU32(uint32(len(sig.results)))
			for _, r := range sig.results {
				sec.AppendByte(r)
			}
		}
		writeSection(out, sectionType, sec)
	}

	if len(m.funcs) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.WriteU32(f.typeIdx)
		}
		writeSection(out, sectionFunc, sec)
	}

	if m.hasMemory {
		sec := &Buffer{}
		sec.WriteU32(1)
		sec.AppendByte(0x00) // no maximum
		sec.WriteU32(m.memMin)
		writeSection(out, sectionMemory, sec)
	}

	if len(m.globals) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.globals)))
		for _, g := range m.globals {
			sec.AppendByte(g.typ)
			if g.mutable {
				sec.AppendByte(0x01)
			} else {
				sec.AppendByte(0x00)
			}
			switch g.typ {
			case api.ValueTypeF64:
				sec.AppendByte(F64Const)
				sec.WriteF64(g.init)
			default:
				sec.AppendByte(I32Const)
				sec.WriteI32(int32(g.init))
			}
			sec.AppendByte(End)
		}
		writeSection(out, sectionGlobal, sec)
	}

	exports := &Buffer{}
	count := uint32(0)
	if m.hasMemory && m.memExport != "" {
		exports.WriteName(m.memExport)
		exports.AppendByte(exportMemory)
		exports.WriteU32(0)
		count++
	}
	for _, f := range m.funcs {
		if f.name == "" {
			continue
		}
		exports.WriteName(f.name)
		exports.AppendByte(exportFunc)
		exports.WriteU32(f.index)
		count++
	}
	if count > 0 {
		sec := &Buffer{}
		sec.WriteU32(count)
		sec.Bytes = append(sec.Bytes, exports.Bytes...)
		writeSection(out, sectionExport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &Buffer{}
		sec.WriteU32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			body := f.encodeBody()
			sec.WriteU32(uint32(len(body)))
			sec.Bytes = append(sec.Bytes, body...)
		}
		writeSection(out, sectionCode, sec)
	}

	return out.Bytes
}
