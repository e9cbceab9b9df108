package wasm

import (
	"fmt"

	"github.com/wippyai/wasm-heapcheck/errors"
)

// multiMemoryBit in a memarg's alignment field announces an explicit memory
// index.
const multiMemoryBit = 0x40

// Access is one instruction that reads or writes linear memory.
type Access struct {
	Name   string
	Offset uint64
	Align  uint32
	Memory uint32
	// PC is the offset of the opcode within Func.Code.
	PC     uint32
	Width  uint8
	Store  bool
	Atomic bool
}

// Scan walks an instruction stream and returns its memory accesses in
// program order. Bulk memory instructions are not reported; they carry a
// runtime length and are checked by their own helpers.
func Scan(code []byte) ([]Access, error) {
	r := NewReader(code)
	var out []Access
	for r.Len() > 0 {
		pc := r.Position()
		op, _ := r.ReadByte()
		acc, ok, err := scanInstr(r, pc, op)
		if err != nil {
			if _, unsupported := err.(*errors.Error); unsupported {
				return nil, err
			}
			return nil, fmt.Errorf("instruction 0x%02x at %d: %w", op, pc, err)
		}
		if ok {
			acc.PC = uint32(pc)
			out = append(out, acc)
		}
	}
	return out, nil
}

// Accesses scans the body of f.
func (f *Func) Accesses() ([]Access, error) {
	return Scan(f.Code)
}

func scanInstr(r *Reader, pc int, op byte) (Access, bool, error) {
	switch {
	case op >= 0x28 && op <= 0x3e:
		acc, err := readAccess(r, mvpMemOps[op-0x28])
		return acc, err == nil, err
	case op >= 0x45 && op <= 0xc4:
		// numeric, including sign extension
		return Access{}, false, nil
	}

	var err error
	switch op {
	case 0x00, 0x01, 0x05, 0x0a, 0x0b, 0x0f, 0x19, 0x1a, 0x1b, 0xd1, 0xd3, 0xd4:
	case 0x02, 0x03, 0x04, 0x06: // block loop if try
		err = skipBlockType(r)
	case 0x07, 0x08, 0x09, 0x0c, 0x0d, 0x10, 0x12, 0x14, 0x15, 0x18,
		0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x3f, 0x40, 0xd2, 0xd5, 0xd6:
		_, err = r.ReadU32()
	case 0x0e: // br_table
		err = skipBrTable(r)
	case 0x11, 0x13: // call_indirect return_call_indirect
		err = skipU32s(r, 2)
	case 0x1c: // select t*
		err = skipVec(r, skipValType)
	case 0x1f:
		err = skipTryTable(r)
	case 0x41, 0x42, 0xd0:
		_, err = r.ReadS64()
	case 0x43:
		err = r.Skip(4)
	case 0x44:
		err = r.Skip(8)
	case PrefixMisc:
		err = scanMisc(r, pc)
	case PrefixSIMD:
		return scanSIMD(r, pc)
	case PrefixAtomic:
		return scanAtomic(r, pc)
	case PrefixGC:
		sub, rerr := r.ReadU32()
		if rerr != nil {
			return Access{}, false, rerr
		}
		return Access{}, false, errors.UnsupportedOpcode(pc, op, int64(sub))
	default:
		return Access{}, false, errors.UnsupportedOpcode(pc, op, -1)
	}
	return Access{}, false, err
}

func scanMisc(r *Reader, pc int) error {
	sub, err := r.ReadU32()
	if err != nil {
		return err
	}
	switch {
	case sub <= miscLastSaturating:
		return nil
	case sub == 0x08, sub == 0x0a, sub == 0x0c, sub == 0x0e:
		// memory.init memory.copy table.init table.copy
		return skipU32s(r, 2)
	case sub <= miscLastTableOp:
		_, err := r.ReadU32()
		return err
	}
	return errors.UnsupportedOpcode(pc, PrefixMisc, int64(sub))
}

func scanSIMD(r *Reader, pc int) (Access, bool, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return Access{}, false, err
	}
	if op, ok := simdMemOps[sub]; ok {
		acc, err := readAccess(r, op)
		if err == nil && sub >= simdFirstLaneMemOp && sub <= simdLastLaneMemOp {
			_, err = r.ReadByte()
		}
		return acc, err == nil, err
	}
	switch {
	case sub == simdV128Const, sub == simdShuffle:
		err = r.Skip(16)
	case sub >= simdFirstLaneOp && sub <= simdLastLaneOp:
		_, err = r.ReadByte()
	case sub > simdLastRelaxedOp:
		err = errors.UnsupportedOpcode(pc, PrefixSIMD, int64(sub))
	}
	return Access{}, false, err
}

func scanAtomic(r *Reader, pc int) (Access, bool, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return Access{}, false, err
	}
	if sub == atomicFence {
		_, err := r.ReadByte()
		return Access{}, false, err
	}
	op, ok := atomicOp(sub)
	if !ok {
		return Access{}, false, errors.UnsupportedOpcode(pc, PrefixAtomic, int64(sub))
	}
	acc, err := readAccess(r, op)
	acc.Atomic = true
	return acc, err == nil, err
}

// readAccess decodes a memarg for op.
func readAccess(r *Reader, op memOp) (Access, error) {
	align, err := r.ReadU32()
	if err != nil {
		return Access{}, err
	}
	var mem uint32
	if align&multiMemoryBit != 0 {
		if mem, err = r.ReadU32(); err != nil {
			return Access{}, err
		}
	}
	offset, err := r.ReadU64()
	if err != nil {
		return Access{}, err
	}
	return Access{
		Name:   op.name,
		Offset: offset,
		Align:  align &^ multiMemoryBit,
		Memory: mem,
		Width:  op.width,
		Store:  op.store,
	}, nil
}

func skipBlockType(r *Reader) error {
	b, err := r.PeekByte()
	if err != nil {
		return err
	}
	if b == 0x40 {
		return r.Skip(1)
	}
	if isValType(b) {
		return skipValType(r)
	}
	_, err = r.ReadS64() // type index as s33
	return err
}

func isValType(b byte) bool {
	switch b {
	case 0x7f, 0x7e, 0x7d, 0x7c, 0x7b, 0x70, 0x6f, 0x6e, 0x6d, 0x6c, 0x6b, 0x6a,
		0x71, 0x72, 0x73, 0x74, 0x69, 0x63, 0x64:
		return true
	}
	return false
}

func skipBrTable(r *Reader) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	return skipU32s(r, int(n)+1)
}

func skipTryTable(r *Reader) error {
	if err := skipBlockType(r); err != nil {
		return err
	}
	return skipVec(r, func(r *Reader) error {
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch kind {
		case 0x00, 0x01: // catch catch_ref: tag label
			return skipU32s(r, 2)
		case 0x02, 0x03: // catch_all catch_all_ref: label
			return skipU32s(r, 1)
		}
		return fmt.Errorf("unknown catch kind 0x%02x", kind)
	})
}

func skipU32s(r *Reader, n int) error {
	for i := 0; i < n; i++ {
		if _, err := r.ReadU32(); err != nil {
			return err
		}
	}
	return nil
}

func skipVec(r *Reader, skip func(*Reader) error) error {
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		if err := skip(r); err != nil {
			return err
		}
	}
	return nil
}
