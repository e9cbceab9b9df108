package wasm

// Prefix bytes of multi-byte opcodes.
const (
	PrefixGC     byte = 0xfb
	PrefixMisc   byte = 0xfc
	PrefixSIMD   byte = 0xfd
	PrefixAtomic byte = 0xfe
)

// memOp describes an instruction that accesses linear memory through a memarg.
type memOp struct {
	name  string
	width uint8
	store bool
}

// mvpMemOps covers 0x28 through 0x3e.
var mvpMemOps = [...]memOp{
	{"i32.load", 4, false},
	{"i64.load", 8, false},
	{"f32.load", 4, false},
	{"f64.load", 8, false},
	{"i32.load8_s", 1, false},
	{"i32.load8_u", 1, false},
	{"i32.load16_s", 2, false},
	{"i32.load16_u", 2, false},
	{"i64.load8_s", 1, false},
	{"i64.load8_u", 1, false},
	{"i64.load16_s", 2, false},
	{"i64.load16_u", 2, false},
	{"i64.load32_s", 4, false},
	{"i64.load32_u", 4, false},
	{"i32.store", 4, true},
	{"i64.store", 8, true},
	{"f32.store", 4, true},
	{"f64.store", 8, true},
	{"i32.store8", 1, true},
	{"i32.store16", 2, true},
	{"i64.store8", 1, true},
	{"i64.store16", 2, true},
	{"i64.store32", 4, true},
}

// simdMemOps maps 0xfd sub-opcodes that take a memarg.
var simdMemOps = map[uint32]memOp{
	0x00: {"v128.load", 16, false},
	0x01: {"v128.load8x8_s", 8, false},
	0x02: {"v128.load8x8_u", 8, false},
	0x03: {"v128.load16x4_s", 8, false},
	0x04: {"v128.load16x4_u", 8, false},
	0x05: {"v128.load32x2_s", 8, false},
	0x06: {"v128.load32x2_u", 8, false},
	0x07: {"v128.load8_splat", 1, false},
	0x08: {"v128.load16_splat", 2, false},
	0x09: {"v128.load32_splat", 4, false},
	0x0a: {"v128.load64_splat", 8, false},
	0x0b: {"v128.store", 16, true},
	0x54: {"v128.load8_lane", 1, false},
	0x55: {"v128.load16_lane", 2, false},
	0x56: {"v128.load32_lane", 4, false},
	0x57: {"v128.load64_lane", 8, false},
	0x58: {"v128.store8_lane", 1, true},
	0x59: {"v128.store16_lane", 2, true},
	0x5a: {"v128.store32_lane", 4, true},
	0x5b: {"v128.store64_lane", 8, true},
	0x5c: {"v128.load32_zero", 4, false},
	0x5d: {"v128.load64_zero", 8, false},
}

const (
	simdV128Const      = 0x0c
	simdShuffle        = 0x0d
	simdFirstLaneOp    = 0x15
	simdLastLaneOp     = 0x22
	simdFirstLaneMemOp = 0x54
	simdLastLaneMemOp  = 0x5b
	simdLastRelaxedOp  = 0x113
	atomicFence        = 0x03
	atomicFirstRMW     = 0x1e
	atomicLastOp       = 0x4e
	miscLastSaturating = 0x07
	miscLastTableOp    = 0x11
)

// atomicMemOps covers 0xfe 0x00 through 0x1d. Read-modify-write ops from
// 0x1e on repeat atomicRMWWidths in groups of seven.
var atomicMemOps = [...]memOp{
	{"memory.atomic.notify", 4, false},
	{"memory.atomic.wait32", 4, false},
	{"memory.atomic.wait64", 8, false},
	{}, // atomic.fence
	{}, {}, {}, {}, {}, {}, {}, {}, {}, {}, {}, {},
	{"i32.atomic.load", 4, false},
	{"i64.atomic.load", 8, false},
	{"i32.atomic.load8_u", 1, false},
	{"i32.atomic.load16_u", 2, false},
	{"i64.atomic.load8_u", 1, false},
	{"i64.atomic.load16_u", 2, false},
	{"i64.atomic.load32_u", 4, false},
	{"i32.atomic.store", 4, true},
	{"i64.atomic.store", 8, true},
	{"i32.atomic.store8", 1, true},
	{"i32.atomic.store16", 2, true},
	{"i64.atomic.store8", 1, true},
	{"i64.atomic.store16", 2, true},
	{"i64.atomic.store32", 4, true},
}

var (
	atomicRMWNames  = [...]string{"add", "sub", "and", "or", "xor", "xchg", "cmpxchg"}
	atomicRMWWidths = [...]struct {
		prefix string
		width  uint8
	}{
		{"i32.atomic.rmw.", 4},
		{"i64.atomic.rmw.", 8},
		{"i32.atomic.rmw8.", 1},
		{"i32.atomic.rmw16.", 2},
		{"i64.atomic.rmw8.", 1},
		{"i64.atomic.rmw16.", 2},
		{"i64.atomic.rmw32.", 4},
	}
)

// atomicOp resolves a 0xfe sub-opcode. ok is false for atomic.fence and for
// sub-opcodes with no memory operand.
func atomicOp(sub uint32) (op memOp, ok bool) {
	if sub < atomicFirstRMW {
		op = atomicMemOps[sub]
		return op, op.width != 0
	}
	if sub > atomicLastOp {
		return memOp{}, false
	}
	i := sub - atomicFirstRMW
	w := atomicRMWWidths[i%7]
	name := w.prefix + atomicRMWNames[i/7]
	if w.width < 4 || w.prefix == "i64.atomic.rmw32." {
		name += "_u"
	}
	return memOp{name: name, width: w.width, store: true}, true
}
