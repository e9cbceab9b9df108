package wasm

import (
	"errors"
	"fmt"
	"math"
)

const (
	// Magic is "\0asm" read little-endian.
	Magic uint32 = 0x6D736100
	// Version is the only supported binary format version.
	Version uint32 = 0x01
)

// Section IDs.
const (
	SectionCustom    byte = 0
	SectionType      byte = 1
	SectionImport    byte = 2
	SectionFunction  byte = 3
	SectionTable     byte = 4
	SectionMemory    byte = 5
	SectionGlobal    byte = 6
	SectionExport    byte = 7
	SectionStart     byte = 8
	SectionElement   byte = 9
	SectionCode      byte = 10
	SectionData      byte = 11
	SectionDataCount byte = 12
	SectionTag       byte = 13
)

// Import kinds.
const (
	KindFunc   byte = 0x00
	KindTable  byte = 0x01
	KindMemory byte = 0x02
	KindGlobal byte = 0x03
	KindTag    byte = 0x04
)

// Limits flags.
const (
	LimitsHasMax   byte = 0x01
	LimitsShared   byte = 0x02
	LimitsMemory64 byte = 0x04
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
	ErrCountTooLarge  = errors.New("count exceeds section length")
	ErrTooManyLocals  = errors.New("too many locals")
)

// maxLocals bounds the declared locals of one function.
const maxLocals = math.MaxUint32

// Memory is a memory declaration, imported or defined.
type Memory struct {
	Max      *uint64
	Min      uint64
	Memory64 bool
	Shared   bool
	Imported bool
}

// Func is a defined function body.
type Func struct {
	// Code is the instruction stream following the local declarations.
	Code []byte
	// Index is the function index, counting imported functions first.
	Index uint32
	// Locals is the number of declared locals, parameters excluded.
	Locals uint64
}

// Module holds the parts of a module the bounds-check analysis reads.
// Other sections are skipped.
type Module struct {
	Memories      []Memory
	Funcs         []Func
	ImportedFuncs uint32
	declared      uint32
}

// MultiMemory reports whether more than one memory is declared.
func (m *Module) MultiMemory() bool { return len(m.Memories) > 1 }

// Memory64 reports whether any memory uses 64-bit indexes.
func (m *Module) Memory64() bool {
	for _, mem := range m.Memories {
		if mem.Memory64 {
			return true
		}
	}
	return false
}

// ParseModule decodes a binary module.
func ParseModule(data []byte) (*Module, error) {
	r := NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}
	var lastOrder int
	for r.Len() > 0 {
		id, _ := r.ReadByte()
		if id != SectionCustom {
			order := sectionOrder(id)
			if order == 0 {
				return nil, fmt.Errorf("unknown section ID: 0x%02x", id)
			}
			if order <= lastOrder {
				return nil, fmt.Errorf("section %d appears out of order", id)
			}
			lastOrder = order
		}

		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}
		sr := NewReader(body)

		switch id {
		case SectionImport:
			if err := parseImportSection(sr, m); err != nil {
				return nil, fmt.Errorf("import section: %w", err)
			}
		case SectionFunction:
			if err := parseFunctionSection(sr, m); err != nil {
				return nil, fmt.Errorf("function section: %w", err)
			}
		case SectionMemory:
			if err := parseMemorySection(sr, m); err != nil {
				return nil, fmt.Errorf("memory section: %w", err)
			}
		case SectionCode:
			if err := parseCodeSection(sr, m); err != nil {
				return nil, fmt.Errorf("code section: %w", err)
			}
		}
	}

	if uint32(len(m.Funcs)) != m.declared {
		return nil, fmt.Errorf("function and code section counts differ: %d != %d", m.declared, len(m.Funcs))
	}
	return m, nil
}

// sectionOrder returns the canonical position of a section, or 0 if unknown.
// Tag and data count sections sit out of ID order.
func sectionOrder(id byte) int {
	switch id {
	case SectionType:
		return 1
	case SectionImport:
		return 2
	case SectionFunction:
		return 3
	case SectionTable:
		return 4
	case SectionMemory:
		return 5
	case SectionTag:
		return 6
	case SectionGlobal:
		return 7
	case SectionExport:
		return 8
	case SectionStart:
		return 9
	case SectionElement:
		return 10
	case SectionDataCount:
		return 11
	case SectionCode:
		return 12
	case SectionData:
		return 13
	}
	return 0
}

func parseImportSection(r *Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err := r.ReadName(); err != nil {
			return err
		}
		if _, err := r.ReadName(); err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch kind {
		case KindFunc:
			if _, err := r.ReadU32(); err != nil {
				return err
			}
			m.ImportedFuncs++
		case KindTable:
			if err := skipTableType(r); err != nil {
				return err
			}
		case KindMemory:
			mem, err := readMemory(r)
			if err != nil {
				return err
			}
			mem.Imported = true
			m.Memories = append(m.Memories, mem)
		case KindGlobal:
			if err := skipValType(r); err != nil {
				return err
			}
			if _, err := r.ReadByte(); err != nil { // mutability
				return err
			}
		case KindTag:
			if _, err := r.ReadByte(); err != nil { // attribute
				return err
			}
			if _, err := r.ReadU32(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown import kind: %d", kind)
		}
	}
	return nil
}

func parseFunctionSection(r *Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err := r.ReadU32(); err != nil {
			return err
		}
	}
	m.declared = count
	return nil
}

func parseMemorySection(r *Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		mem, err := readMemory(r)
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, mem)
	}
	return nil
}

func parseCodeSection(r *Reader, m *Module) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	// Every body carries at least its size byte.
	if count > uint32(r.Len()) {
		return r.wrapError(fmt.Errorf("%w: %d bodies in %d bytes", ErrCountTooLarge, count, r.Len()))
	}
	m.Funcs = make([]Func, count)
	for i := uint32(0); i < count; i++ {
		size, err := r.ReadU32()
		if err != nil {
			return err
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return err
		}
		br := NewReader(body)

		groups, err := br.ReadU32()
		if err != nil {
			return err
		}
		var locals uint64
		for j := uint32(0); j < groups; j++ {
			n, err := br.ReadU32()
			if err != nil {
				return err
			}
			if err := skipValType(br); err != nil {
				return err
			}
			locals += uint64(n)
			if locals > maxLocals {
				return r.wrapError(fmt.Errorf("%w: function %d", ErrTooManyLocals, m.ImportedFuncs+i))
			}
		}

		code, _ := br.ReadBytes(br.Len())
		m.Funcs[i] = Func{
			Code:   code,
			Index:  m.ImportedFuncs + i,
			Locals: locals,
		}
	}
	return nil
}

func readMemory(r *Reader) (Memory, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return Memory{}, err
	}
	mem := Memory{
		Shared:   flags&LimitsShared != 0,
		Memory64: flags&LimitsMemory64 != 0,
	}
	read := r.ReadU64
	if !mem.Memory64 {
		read = func() (uint64, error) {
			v, err := r.ReadU32()
			return uint64(v), err
		}
	}
	if mem.Min, err = read(); err != nil {
		return Memory{}, err
	}
	if flags&LimitsHasMax != 0 {
		hi, err := read()
		if err != nil {
			return Memory{}, err
		}
		mem.Max = &hi
	}
	if mem.Max != nil && mem.Min > *mem.Max {
		return Memory{}, fmt.Errorf("limits min (%d) exceeds max (%d)", mem.Min, *mem.Max)
	}
	return mem, nil
}

func skipTableType(r *Reader) error {
	if err := skipValType(r); err != nil {
		return err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return err
	}
	if _, err := r.ReadU64(); err != nil {
		return err
	}
	if flags&LimitsHasMax != 0 {
		if _, err := r.ReadU64(); err != nil {
			return err
		}
	}
	return nil
}

// skipValType consumes a value type, including the heap type that follows
// the typed reference prefixes.
func skipValType(r *Reader) error {
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	switch b {
	case 0x7f, 0x7e, 0x7d, 0x7c, 0x7b, // i32 i64 f32 f64 v128
		0x70, 0x6f, 0x6e, 0x6d, 0x6c, 0x6b, 0x6a, 0x71, 0x72, 0x73, 0x74, 0x69:
		return nil
	case 0x63, 0x64: // (ref null ht), (ref ht)
		_, err := r.ReadS64()
		return err
	}
	return fmt.Errorf("unknown value type 0x%02x", b)
}
