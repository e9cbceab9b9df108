package planner

import "math/bits"

// outOfRange returns 1 when the comparison fails for index against the loaded
// bound and 0 otherwise. Every result comes out of a borrow or carry so that
// OutOfRange and Mask share one comparison and Mask never materializes a bool.
// bound is ignored by static kinds.
func (c Check) outOfRange(index, bound uint64) uint64 {
	switch c.Kind {
	case CheckAlwaysTrap:
		return 1
	case CheckIndexAboveLimit:
		// Limit - index borrows iff index > Limit.
		_, borrow := bits.Sub64(c.Limit, index, 0)
		return borrow
	case CheckIndexAboveBound:
		_, borrow := bits.Sub64(bound, index, 0)
		return borrow
	case CheckIndexAtLeastBound:
		// index - bound borrows iff index < bound.
		_, borrow := bits.Sub64(index, bound, 0)
		return borrow ^ 1
	case CheckEndAboveBound, CheckEndAboveBoundWide:
		end, carry := bits.Add64(index, c.End, 0)
		_, borrow := bits.Sub64(bound, end, 0)
		return carry | borrow
	default:
		return 0
	}
}

// OutOfRange reports whether the trapping form of c would fault for index
// against the runtime bound.
func (c Check) OutOfRange(index, bound uint64) bool {
	return c.outOfRange(index, bound) == 1
}

// Mask returns all ones when index is in range and zero otherwise.
func (c Check) Mask(index, bound uint64) uint64 {
	return c.outOfRange(index, bound) - 1
}

// apply combines the raw address with a mask according to the address form.
func (a Address) apply(raw, mask uint64) uint64 {
	switch a.Mask {
	case MaskAnd:
		return raw & mask
	case MaskSelect:
		return raw&mask | a.Redirect&^mask
	default:
		return raw
	}
}
