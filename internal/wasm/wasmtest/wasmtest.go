// Package wasmtest assembles small binary modules for tests.
package wasmtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Value types.
const (
	I32 byte = 0x7f
	I64 byte = 0x7e
)

// Limits describes a memory.
type Limits struct {
	Max      *uint64
	Min      uint64
	Memory64 bool
	Shared   bool
}

// Pages returns a pointer to n for Limits.Max.
func Pages(n uint64) *uint64 { return &n }

type funcType struct {
	params, results []byte
}

type function struct {
	body   []byte
	locals uint32
	typ    int
}

type export struct {
	name  string
	kind  byte
	index uint32
}

// Module builds a binary module section by section.
type Module struct {
	types         []funcType
	importedMems  []Limits
	importedFuncs []int
	memories      []Limits
	funcs         []function
	exports       []export
}

// New returns an empty module.
func New() *Module { return &Module{} }

// ImportFunc imports env.fN with the given signature.
func (m *Module) ImportFunc(params, results []byte) *Module {
	m.importedFuncs = append(m.importedFuncs, m.typeIndex(params, results))
	return m
}

// ImportMemory imports env.memory with limits l.
func (m *Module) ImportMemory(l Limits) *Module {
	m.importedMems = append(m.importedMems, l)
	return m
}

// Memory defines a memory with limits l.
func (m *Module) Memory(l Limits) *Module {
	m.memories = append(m.memories, l)
	return m
}

// Func defines a function with extra i32 locals. body must end with End.
// It returns the new function's index.
func (m *Module) Func(params, results []byte, locals uint32, body ...byte) uint32 {
	m.funcs = append(m.funcs, function{body: body, locals: locals, typ: m.typeIndex(params, results)})
	return uint32(len(m.importedFuncs) + len(m.funcs) - 1)
}

// Export exports function idx as name.
func (m *Module) Export(name string, idx uint32) *Module {
	m.exports = append(m.exports, export{name: name, kind: 0x00, index: idx})
	return m
}

func (m *Module) typeIndex(params, results []byte) int {
	for i, t := range m.types {
		if bytes.Equal(t.params, params) && bytes.Equal(t.results, results) {
			return i
		}
	}
	m.types = append(m.types, funcType{params, results})
	return len(m.types) - 1
}

// Bytes encodes the module.
func (m *Module) Bytes() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	if len(m.types) > 0 {
		var s bytes.Buffer
		s.Write(U32(uint32(len(m.types))))
		for _, t := range m.types {
			s.WriteByte(0x60)
			s.Write(U32(uint32(len(t.params))))
			s.Write(t.params)
			s.Write(U32(uint32(len(t.results))))
			s.Write(t.results)
		}
		section(&out, 1, s.Bytes())
	}

	if n := len(m.importedFuncs) + len(m.importedMems); n > 0 {
		var s bytes.Buffer
		s.Write(U32(uint32(n)))
		for i, typ := range m.importedFuncs {
			name(&s, "env")
			name(&s, fmt.Sprintf("f%d", i))
			s.WriteByte(0x00)
			s.Write(U32(uint32(typ)))
		}
		for i, l := range m.importedMems {
			name(&s, "env")
			name(&s, fmt.Sprintf("memory%d", i))
			s.WriteByte(0x02)
			limits(&s, l)
		}
		section(&out, 2, s.Bytes())
	}

	if len(m.funcs) > 0 {
		var s bytes.Buffer
		s.Write(U32(uint32(len(m.funcs))))
		for _, f := range m.funcs {
			s.Write(U32(uint32(f.typ)))
		}
		section(&out, 3, s.Bytes())
	}

	if len(m.memories) > 0 {
		var s bytes.Buffer
		s.Write(U32(uint32(len(m.memories))))
		for _, l := range m.memories {
			limits(&s, l)
		}
		section(&out, 5, s.Bytes())
	}

	if len(m.exports) > 0 {
		var s bytes.Buffer
		s.Write(U32(uint32(len(m.exports))))
		for _, e := range m.exports {
			name(&s, e.name)
			s.WriteByte(e.kind)
			s.Write(U32(e.index))
		}
		section(&out, 7, s.Bytes())
	}

	if len(m.funcs) > 0 {
		var s bytes.Buffer
		s.Write(U32(uint32(len(m.funcs))))
		for _, f := range m.funcs {
			var b bytes.Buffer
			if f.locals > 0 {
				b.WriteByte(1)
				b.Write(U32(f.locals))
				b.WriteByte(I32)
			} else {
				b.WriteByte(0)
			}
			b.Write(f.body)
			s.Write(U32(uint32(b.Len())))
			s.Write(b.Bytes())
		}
		section(&out, 10, s.Bytes())
	}

	return out.Bytes()
}

func section(out *bytes.Buffer, id byte, body []byte) {
	out.WriteByte(id)
	out.Write(U32(uint32(len(body))))
	out.Write(body)
}

func name(out *bytes.Buffer, s string) {
	out.Write(U32(uint32(len(s))))
	out.WriteString(s)
}

func limits(out *bytes.Buffer, l Limits) {
	var flags byte
	if l.Max != nil {
		flags |= 0x01
	}
	if l.Shared {
		flags |= 0x02
	}
	if l.Memory64 {
		flags |= 0x04
	}
	out.WriteByte(flags)
	out.Write(U64(l.Min))
	if l.Max != nil {
		out.Write(U64(*l.Max))
	}
}

// End terminates a function body.
const End byte = 0x0b

// U32 encodes v as unsigned LEB128.
func U32(v uint32) []byte { return U64(uint64(v)) }

// U64 encodes v as unsigned LEB128.
func U64(v uint64) []byte {
	return binary.AppendUvarint(nil, v)
}

// S64 encodes v as signed LEB128.
func S64(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

// I32Const encodes i32.const v.
func I32Const(v int32) []byte { return append([]byte{0x41}, S64(int64(v))...) }

// I64Const encodes i64.const v.
func I64Const(v int64) []byte { return append([]byte{0x42}, S64(v)...) }

// LocalGet encodes local.get i.
func LocalGet(i uint32) []byte { return append([]byte{0x20}, U32(i)...) }

// MemArg encodes a memarg, using the multi-memory form when mem is not 0.
func MemArg(align uint32, mem uint32, offset uint64) []byte {
	var out []byte
	if mem != 0 {
		out = append(out, U32(align|0x40)...)
		out = append(out, U32(mem)...)
	} else {
		out = append(out, U32(align)...)
	}
	return append(out, U64(offset)...)
}

// Op encodes a single-byte memory instruction with its memarg.
func Op(op byte, align uint32, offset uint64) []byte {
	return append([]byte{op}, MemArg(align, 0, offset)...)
}

// Concat joins instruction fragments.
func Concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
