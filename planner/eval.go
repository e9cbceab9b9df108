package planner

import "github.com/wippyai/wasm-heapcheck/trap"

// Machine holds the runtime values a plan is evaluated against.
type Machine struct {
	Base  uint64
	Index uint64
	// Bound is the loaded bound for dynamic heaps. Static plans ignore it.
	Bound uint64
}

// Outcome is the result of one evaluated access or prologue.
type Outcome struct {
	// Address is the effective address the memory operation uses. For stack
	// plans it is the new stack pointer.
	Address uint64
	Trap    trap.SiteID
	Reason  trap.Reason
	Fault   bool
	// Redirected reports that a masked access was sent to the redirect target.
	Redirected bool
}

// Evaluate computes what the emitted code does for one concrete execution.
// Address arithmetic wraps like the machine's does.
func (p Plan) Evaluate(m Machine) Outcome {
	switch p.Strategy {
	case TrapOnOutOfRange:
		if p.Check.OutOfRange(m.Index, m.Bound) {
			return Outcome{Fault: true, Reason: trap.HeapOutOfBounds, Trap: p.Trap}
		}
	case MaskToSafeAddress:
		mask := p.Check.Mask(m.Index, m.Bound)
		return Outcome{
			Address:    p.Address.apply(m.Base+m.Index+p.Address.Offset, mask),
			Redirected: mask == 0,
		}
	}
	return Outcome{Address: m.Base + m.Index + p.Address.Offset}
}
