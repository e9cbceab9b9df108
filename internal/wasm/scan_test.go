package wasm

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-heapcheck/errors"
	w "github.com/wippyai/wasm-heapcheck/internal/wasm/wasmtest"
)

func TestScan_MVP(t *testing.T) {
	code := w.Concat(
		w.I32Const(0), w.Op(0x28, 2, 16), []byte{0x1a}, // i32.load offset=16
		w.I32Const(0), w.I64Const(7), w.Op(0x3c, 0, 3), // i64.store8 offset=3
		w.I32Const(0), w.Op(0x2f, 1, 0), []byte{0x1a}, // i32.load16_u
		[]byte{w.End},
	)
	accs, err := Scan(code)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []struct {
		name   string
		offset uint64
		width  uint8
		store  bool
	}{
		{"i32.load", 16, 4, false},
		{"i64.store8", 3, 1, true},
		{"i32.load16_u", 0, 2, false},
	}
	if len(accs) != len(want) {
		t.Fatalf("got %d accesses, want %d: %+v", len(accs), len(want), accs)
	}
	for i, a := range accs {
		if a.Name != want[i].name || a.Offset != want[i].offset || a.Width != want[i].width || a.Store != want[i].store {
			t.Errorf("access %d = %+v, want %+v", i, a, want[i])
		}
		if code[a.PC] < 0x28 || code[a.PC] > 0x3e {
			t.Errorf("access %d PC %d points at 0x%02x", i, a.PC, code[a.PC])
		}
	}
}

func TestScan_Prefixed(t *testing.T) {
	code := w.Concat(
		// v128.load offset=32
		w.I32Const(0), []byte{0xfd}, w.U32(0x00), w.MemArg(4, 0, 32), []byte{0x1a},
		// v128.const + v128.store
		w.I32Const(0), []byte{0xfd}, w.U32(0x0c), make([]byte, 16),
		[]byte{0xfd}, w.U32(0x0b), w.MemArg(4, 0, 0),
		// v128.load32_lane lane 2
		w.I32Const(0), []byte{0xfd}, w.U32(0x0c), make([]byte, 16),
		[]byte{0xfd}, w.U32(0x56), w.MemArg(2, 0, 8), []byte{2, 0x1a},
		// i8x16.extract_lane_s 0, no memory
		[]byte{0xfd}, w.U32(0x0c), make([]byte, 16), []byte{0xfd}, w.U32(0x15), []byte{0, 0x1a},
		// i64.atomic.rmw16.cmpxchg_u
		w.I32Const(0), w.I64Const(1), w.I64Const(2), []byte{0xfe}, w.U32(0x4d), w.MemArg(1, 0, 6), []byte{0x1a},
		// atomic.fence
		[]byte{0xfe, 0x03, 0x00},
		// memory.fill and memory.copy are not reported
		w.I32Const(0), w.I32Const(0), w.I32Const(0), []byte{0xfc}, w.U32(11), w.U32(0),
		w.I32Const(0), w.I32Const(0), w.I32Const(0), []byte{0xfc}, w.U32(10), w.U32(0), w.U32(0),
		// i32.load from memory 1
		w.I32Const(0), []byte{0x28}, w.MemArg(2, 1, 4), []byte{0x1a},
		[]byte{w.End},
	)
	accs, err := Scan(code)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []struct {
		name   string
		offset uint64
		width  uint8
		memory uint32
		store  bool
		atomic bool
	}{
		{"v128.load", 32, 16, 0, false, false},
		{"v128.store", 0, 16, 0, true, false},
		{"v128.load32_lane", 8, 4, 0, false, false},
		{"i64.atomic.rmw16.cmpxchg_u", 6, 2, 0, true, true},
		{"i32.load", 4, 4, 1, false, false},
	}
	if len(accs) != len(want) {
		t.Fatalf("got %d accesses, want %d: %+v", len(accs), len(want), accs)
	}
	for i, a := range accs {
		wa := want[i]
		if a.Name != wa.name || a.Offset != wa.offset || a.Width != wa.width ||
			a.Memory != wa.memory || a.Store != wa.store || a.Atomic != wa.atomic {
			t.Errorf("access %d = %+v, want %+v", i, a, wa)
		}
	}
	if accs[4].Align != 2 {
		t.Errorf("multi-memory bit leaked into align: %d", accs[4].Align)
	}
}

func TestScan_ControlFlow(t *testing.T) {
	code := w.Concat(
		[]byte{0x02, 0x40}, // block
		[]byte{0x03, 0x7f}, // loop (result i32)
		w.I32Const(1),
		[]byte{0x0e, 0x02, 0x00, 0x01, 0x01}, // br_table 0 1 default 1
		[]byte{w.End},
		[]byte{0x1a},
		[]byte{w.End},
		[]byte{0x44, 0, 0, 0, 0, 0, 0, 0, 0, 0x1a}, // f64.const 0
		[]byte{0x43, 0, 0, 0, 0, 0x1a}, // f32.const 0
		w.I32Const(0), []byte{0x04, 0x00}, // if with type index 0
		[]byte{0x05, w.End},
		[]byte{0x11, 0x00, 0x00}, // call_indirect
		[]byte{0x1c, 0x01, 0x7f}, // select (result i32)
		[]byte{0xd0, 0x70, 0x1a}, // ref.null func
		w.I32Const(0), []byte{0x30}, w.MemArg(0, 0, 1), []byte{0x1a},
		[]byte{w.End},
	)
	accs, err := Scan(code)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(accs) != 1 || accs[0].Name != "i64.load8_s" || accs[0].Offset != 1 {
		t.Errorf("accesses = %+v", accs)
	}
}

func TestScan_Errors(t *testing.T) {
	tests := []struct {
		name        string
		code        []byte
		unsupported bool
	}{
		{"unknown opcode", []byte{0x27}, true},
		{"gc prefix", []byte{0xfb, 0x00, 0x00}, true},
		{"unknown misc", []byte{0xfc, 0x20}, true},
		{"unknown atomic", []byte{0xfe, 0x60}, true},
		{"simd out of range", append([]byte{0xfd}, w.U32(0x200)...), true},
		{"truncated memarg", []byte{0x28, 0x02}, false},
		{"truncated const", []byte{0x44, 0x00}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Scan(tt.code)
			if err == nil {
				t.Fatal("expected error")
			}
			unsupported := stderrors.Is(err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindUnsupported})
			if unsupported != tt.unsupported {
				t.Errorf("unsupported = %v for %v", unsupported, err)
			}
		})
	}
}

func TestAtomicOpNames(t *testing.T) {
	tests := []struct {
		sub   uint32
		name  string
		width uint8
	}{
		{0x00, "memory.atomic.notify", 4},
		{0x10, "i32.atomic.load", 4},
		{0x1d, "i64.atomic.store32", 4},
		{0x1e, "i32.atomic.rmw.add", 4},
		{0x20, "i32.atomic.rmw8.add_u", 1},
		{0x24, "i64.atomic.rmw32.add_u", 4},
		{0x41, "i32.atomic.rmw.xchg", 4},
		{0x49, "i64.atomic.rmw.cmpxchg", 8},
		{0x4e, "i64.atomic.rmw32.cmpxchg_u", 4},
	}
	for _, tt := range tests {
		op, ok := atomicOp(tt.sub)
		if !ok || op.name != tt.name || op.width != tt.width {
			t.Errorf("atomicOp(%#x) = %+v, %v", tt.sub, op, ok)
		}
	}
	for _, sub := range []uint32{0x03, 0x04, 0x0f, 0x4f} {
		if _, ok := atomicOp(sub); ok {
			t.Errorf("atomicOp(%#x) should have no memory operand", sub)
		}
	}
}

func FuzzScan(f *testing.F) {
	f.Add(w.Concat(w.I32Const(0), w.Op(0x28, 2, 16), []byte{0x1a, w.End}))
	f.Add([]byte{0xfd, 0x00, 0x04, 0x00})
	f.Add([]byte{0xfe, 0x1e, 0x02, 0x00})
	f.Add([]byte{0x1f, 0x40, 0x01, 0x00, 0x00, 0x00})

	f.Fuzz(func(t *testing.T, code []byte) {
		accs, err := Scan(code)
		if err != nil {
			return
		}
		for _, a := range accs {
			if int(a.PC) >= len(code) || a.Width == 0 {
				t.Fatalf("bad access %+v", a)
			}
		}
	})
}

func FuzzParseModule(f *testing.F) {
	f.Add(w.New().Memory(w.Limits{Min: 1}).Bytes())
	f.Add([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	f.Add(hugeCodeCount)
	f.Add(tooManyLocals)

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = ParseModule(data)
	})
}
