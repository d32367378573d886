package wasmgen

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

var (
	f64  = []api.ValueType{api.ValueTypeF64}
	f64s = []api.ValueType{api.ValueTypeF64, api.ValueTypeF64}
)

func TestBuffer_LEB128(t *testing.T) {
	tests := []struct {
		want []byte
		v    uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
	}
	for _, tt := range tests {
		b := &Buffer{}
		b.WriteU32(tt.v)
		if !bytes.Equal(b.Bytes, tt.want) {
			t.Errorf("WriteU32(%d) = %x, want %x", tt.v, b.Bytes, tt.want)
		}
	}

	signed := []struct {
		want []byte
		v    int32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0x3f}, 63},
		{[]byte{0xc0, 0x00}, 64},
		{[]byte{0x40}, -64},
		{[]byte{0xbf, 0x7f}, -65},
	}
	for _, tt := range signed {
		b := &Buffer{}
		b.WriteI32(tt.v)
		if !bytes.Equal(b.Bytes, tt.want) {
			t.Errorf("WriteI32(%d) = %x, want %x", tt.v, b.Bytes, tt.want)
		}
	}
}

func TestModule_EmptyEncoding(t *testing.T) {
	got := NewModule().Encode()
	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("empty module = %x, want %x", got, want)
	}
}

func TestModule_TypeDedup(t *testing.T) {
	m := NewModule()
	a := m.Func("a", f64, f64)
	b := m.Func("b", f64, f64)
	c := m.Func("c", f64s, nil)

	if a.typeIdx != b.typeIdx {
		t.Errorf("identical signatures got types %d and %d", a.typeIdx, b.typeIdx)
	}
	if c.typeIdx == a.typeIdx {
		t.Error("distinct signatures share a type")
	}
	if len(m.types) != 2 {
		t.Errorf("types = %d, want 2", len(m.types))
	}
	if c.Index() != 2 {
		t.Errorf("c.Index() = %d, want 2", c.Index())
	}
}

func TestFunc_LocalGrouping(t *testing.T) {
	m := NewModule()
	f := m.Func("f", f64, nil)
	if idx := f.Local(api.ValueTypeI32); idx != 1 {
		t.Errorf("first local index = %d, want 1", idx)
	}
	f.Local(api.ValueTypeI32)
	f.Local(api.ValueTypeF64)

	body := f.encodeBody()
	want := []byte{0x02, 0x02, api.ValueTypeI32, 0x01, api.ValueTypeF64, End}
	if !bytes.Equal(body, want) {
		t.Errorf("body = %x, want %x", body, want)
	}
}

func compile(t *testing.T, m *Module) api.Module {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	mod, err := rt.Instantiate(ctx, m.Encode())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return mod
}

func TestModule_RunsUnderWazero(t *testing.T) {
	m := NewModule()
	m.Memory(1, "memory")
	scale := m.GlobalF64(2.5)

	mul := m.Func("mul", f64, f64)
	mul.LocalGet(0).GlobalGet(scale).Op(F64Mul)

	set := m.Func("set-scale", f64, nil)
	set.LocalGet(0).GlobalSet(scale)

	// stores x at address 16, reads it back plus one
	roundTrip := m.Func("store-load", f64, f64)
	roundTrip.I32Const(16).LocalGet(0).F64Store(0)
	roundTrip.I32Const(8).F64Load(8).F64Const(1).Op(F64Add)

	pair := m.Func("pair", f64, f64s)
	pair.LocalGet(0).Op(F64Floor).LocalGet(0).Op(F64Ceil)

	ctx := context.Background()
	mod := compile(t, m)

	res, err := mod.ExportedFunction("mul").Call(ctx, api.EncodeF64(4))
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	if got := api.DecodeF64(res[0]); got != 10 {
		t.Errorf("mul(4) = %v, want 10", got)
	}

	if _, err := mod.ExportedFunction("set-scale").Call(ctx, api.EncodeF64(3)); err != nil {
		t.Fatalf("set-scale: %v", err)
	}
	res, _ = mod.ExportedFunction("mul").Call(ctx, api.EncodeF64(4))
	if got := api.DecodeF64(res[0]); got != 12 {
		t.Errorf("mul(4) after set = %v, want 12", got)
	}

	res, err = mod.ExportedFunction("store-load").Call(ctx, api.EncodeF64(41))
	if err != nil {
		t.Fatalf("store-load: %v", err)
	}
	if got := api.DecodeF64(res[0]); got != 42 {
		t.Errorf("store-load(41) = %v, want 42", got)
	}
	if v, ok := mod.Memory().ReadFloat64Le(16); !ok || v != 41 {
		t.Errorf("memory[16] = %v, %v", v, ok)
	}

	res, err = mod.ExportedFunction("pair").Call(ctx, api.EncodeF64(2.5))
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if len(res) != 2 || api.DecodeF64(res[0]) != 2 || api.DecodeF64(res[1]) != 3 {
		t.Errorf("pair(2.5) = %v", res)
	}
}

func TestModule_ControlFlow(t *testing.T) {
	m := NewModule()

	// sum of 1..n with a loop over an i32 counter
	sum := m.Func("sum", f64, f64)
	i := sum.Local(api.ValueTypeI32)
	acc := sum.Local(api.ValueTypeF64)
	limit := sum.Local(api.ValueTypeI32)
	sum.LocalGet(0).Op(I32TruncF64U).LocalSet(limit)
	sum.I32Const(1).LocalSet(i)
	sum.Block().Loop()
	sum.LocalGet(i).LocalGet(limit).Op(I32GtU).BrIf(1)
	sum.LocalGet(acc).LocalGet(i).Op(F64ConvertI32U).Op(F64Add).LocalSet(acc)
	sum.LocalGet(i).I32Const(1).Op(I32Add).LocalSet(i)
	sum.Br(0)
	sum.End().End()
	sum.LocalGet(acc)

	// early return through an if
	clamp := m.Func("clamp", f64, f64)
	clamp.LocalGet(0).F64Const(0).Op(F64Lt).If().F64Const(0).Return().End()
	clamp.LocalGet(0)

	caller := m.Func("twice-sum", f64, f64)
	caller.LocalGet(0).Call(sum).F64Const(2).Op(F64Mul)

	ctx := context.Background()
	mod := compile(t, m)

	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"sum", 10, 55},
		{"sum", 0, 0},
		{"clamp", -3, 0},
		{"clamp", 7, 7},
		{"twice-sum", 4, 20},
	}
	for _, tt := range tests {
		res, err := mod.ExportedFunction(tt.name).Call(ctx, api.EncodeF64(tt.in))
		if err != nil {
			t.Fatalf("%s(%v): %v", tt.name, tt.in, err)
		}
		if got := api.DecodeF64(res[0]); got != tt.want {
			t.Errorf("%s(%v) = %v, want %v", tt.name, tt.in, got, tt.want)
		}
	}
}
