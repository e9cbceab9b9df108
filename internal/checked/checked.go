// Package checked implements unsigned arithmetic that reports overflow instead of
// wrapping. Every bounds computation in the planner goes through it.
package checked

import "math/bits"

// Add returns a+b and whether the sum fits in 64 bits.
func Add(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// Sub returns a-b and whether the difference is non-negative.
func Sub(a, b uint64) (uint64, bool) {
	diff, borrow := bits.Sub64(a, b, 0)
	return diff, borrow == 0
}

// Mul returns a*b and whether the product fits in 64 bits.
func Mul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

// AddWidth returns a+b computed over an address space of the given bit width
// (1 to 64) and whether the sum fits in it. Operands wider than the space
// are reported as overflow.
func AddWidth(a, b uint64, width uint) (uint64, bool) {
	sum, ok := Add(a, b)
	if !ok {
		return sum, false
	}
	if width >= 64 {
		return sum, true
	}
	return sum, sum <= Max(width)
}

// Max returns the largest value representable in width bits.
func Max(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return 1<<width - 1
}

// Span returns the number of addressable bytes in a space of width bits,
// saturated to 2^64-1 for a full 64-bit space.
func Span(width uint) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return 1 << width
}
