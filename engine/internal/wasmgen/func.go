package wasmgen

import "github.com/tetratelabs/wazero/api"

// Control and variable instructions.
const (
	Block     = 0x02
	Loop      = 0x03
	If        = 0x04
	Else      = 0x05
	End       = 0x0b
	Br        = 0x0c
	BrIf      = 0x0d
	Return    = 0x0f
	Call      = 0x10
	LocalGet  = 0x20
	LocalSet  = 0x21
	LocalTee  = 0x22
	GlobalGet = 0x23
	GlobalSet = 0x24
	F64Load   = 0x2b
	F64Store  = 0x39
	I32Const  = 0x41
	F64Const  = 0x44

	// BlockEmpty is the block type of a block with no results.
	BlockEmpty = 0x40
)

// Numeric instructions without immediates, for use with Func.Op.
const (
	I32GtU         = 0x4b
	I32GeU         = 0x4f
	F64Lt          = 0x63
	F64Gt          = 0x64
	F64Le          = 0x65
	F64Ge          = 0x66
	I32Add         = 0x6a
	I32Sub         = 0x6b
	I32Shl         = 0x74
	I32ShrU        = 0x76
	F64Ceil        = 0x9b
	F64Floor       = 0x9c
	F64Add         = 0xa0
	F64Sub         = 0xa1
	F64Mul         = 0xa2
	F64Div         = 0xa3
	F64Min         = 0xa4
	F64Max         = 0xa5
	I32TruncF64U   = 0xab
	F64ConvertI32U = 0xb8
)

// f64 memory accesses are always emitted naturally aligned (2^3).
const f64Align = 3

// Func is a function body under construction. Emitters return the receiver
// so instruction sequences read left to right.
type Func struct {
	name    string
	locals  []api.ValueType
	body    Buffer
	index   uint32
	typeIdx uint32
	nparams uint32
}

// Index is the function index inside the module.
func (f *Func) Index() uint32 {
	return f.index
}

// Local declares a local of type t and returns its index. Parameters occupy
// the first indices.
func (f *Func) Local(t api.ValueType) uint32 {
	f.locals = append(f.locals, t)
	return f.nparams + uint32(len(f.locals)-1)
}

// Op emits instructions that take no immediates.
func (f *Func) Op(ops ...byte) *Func {
	f.body.AppendByte(ops...)
	return f
}

func (f *Func) LocalGet(i uint32) *Func { return f.withIndex(LocalGet, i) }
func (f *Func) LocalSet(i uint32) *Func { return f.withIndex(LocalSet, i) }
func (f *Func) LocalTee(i uint32) *Func { return f.withIndex(LocalTee, i) }

func (f *Func) GlobalGet(i uint32) *Func { return f.withIndex(GlobalGet, i) }
func (f *Func) GlobalSet(i uint32) *Func { return f.withIndex(GlobalSet, i) }

// Call emits a direct call to callee.
func (f *Func) Call(callee *Func) *Func { return f.withIndex(Call, callee.index) }

// Br branches to the enclosing label at depth.
func (f *Func) Br(depth uint32) *Func { return f.withIndex(Br, depth) }

// BrIf branches to the enclosing label at depth when the top of stack is non-zero.
func (f *Func) BrIf(depth uint32) *Func { return f.withIndex(BrIf, depth) }

// Block opens a block with no results.
func (f *Func) Block() *Func { return f.Op(Block, BlockEmpty) }

// Loop opens a loop with no results.
func (f *Func) Loop() *Func { return f.Op(Loop, BlockEmpty) }

// If opens an if with no results.
func (f *Func) If() *Func { return f.Op(If, BlockEmpty) }

func (f *Func) Else() *Func   { return f.Op(Else) }
func (f *Func) End() *Func    { return f.Op(End) }
func (f *Func) Return() *Func { return f.Op(Return) }

func (f *Func) I32Const(v int32) *Func {
	f.body.AppendByte(I32Const)
	f.body.WriteI32(v)
	return f
}

func (f *Func) F64Const(v float64) *Func {
	f.body.AppendByte(F64Const)
	f.body.WriteF64(v)
	return f
}

// F64Load loads an f64 from the address on the stack plus offset.
func (f *Func) F64Load(offset uint32) *Func {
	f.body.AppendByte(F64Load)
	f.body.WriteU32(f64Align)
	f.body.WriteU32(offset)
	return f
}

// F64Store stores the f64 on the stack at the address below it plus offset.
func (f *Func) F64Store(offset uint32) *Func {
	f.body.AppendByte(F64Store)
	f.body.WriteU32(f64Align)
	f.body.WriteU32(offset)
	return f
}

func (f *Func) withIndex(op byte, i uint32) *Func {
	f.body.AppendByte(op)
	f.body.WriteU32(i)
	return f
}

// encodeBody returns the local declarations, the instructions and the
// closing end. Runs of equal local types are grouped.
func (f *Func) encodeBody() []byte {
	out := &Buffer{}

	type group struct {
		typ   api.ValueType
		count uint32
	}
	var groups []group
	for _, t := range f.locals {
		if n := len(groups); n > 0 && groups[n-1].typ == t {
			groups[n-1].count++
			continue
		}
		groups = append(groups, group{typ: t, count: 1})
	}

	out.WriteU32(uint32(len(groups)))
	for _, g := range groups {
		out.WriteU32(g.count)
		out.AppendByte(g.typ)
	}
	out.Bytes = append(out.Bytes, f.body.Bytes...)
	out.AppendByte(End)
	return out.Bytes
}
