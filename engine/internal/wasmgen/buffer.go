package wasmgen

import (
	"encoding/binary"
	"math"
)

// Buffer accumulates encoded wasm bytes.
type Buffer struct {
	Bytes []byte
}

func (b *Buffer) AppendByte(v ...byte) {
	b.Bytes = append(b.Bytes, v...)
}

// WriteU32 writes unsigned LEB128 encoding.
func (b *Buffer) WriteU32(v uint32) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			byt |= 0x80
		}
		b.Bytes = append(b.Bytes, byt)
		if v == 0 {
			return
		}
	}
}

// WriteI32 writes signed LEB128 encoding.
func (b *Buffer) WriteI32(v int32) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && byt&0x40 == 0) || (v == -1 && byt&0x40 != 0) {
			b.Bytes = append(b.Bytes, byt)
			return
		}
		b.Bytes = append(b.Bytes, byt|0x80)
	}
}

func (b *Buffer) WriteF64(v float64) {
	b.Bytes = binary.LittleEndian.AppendUint64(b.Bytes, math.Float64bits(v))
}

func (b *Buffer) WriteName(s string) {
	b.WriteU32(uint32(len(s)))
	b.Bytes = append(b.Bytes, s...)
}

// writeSection appends a section with its id and size prefix.
func writeSection(out *Buffer, id byte, content *Buffer) {
	out.AppendByte(id)
	out.WriteU32(uint32(len(content.Bytes)))
	out.Bytes = append(out.Bytes, content.Bytes...)
}
