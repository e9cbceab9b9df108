package planner

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasm-heapcheck/heap"
	"github.com/wippyai/wasm-heapcheck/trap"
)

// Strategy is how a plan enforces its check.
type Strategy uint8

const (
	// StrategyNone means no check is emitted.
	StrategyNone Strategy = iota
	// TrapOnOutOfRange branches to a trap site when the check fails.
	TrapOnOutOfRange
	// MaskToSafeAddress turns the check into an address mask and never branches.
	MaskToSafeAddress
)

func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case TrapOnOutOfRange:
		return "trap"
	case MaskToSafeAddress:
		return "mask"
	default:
		return fmt.Sprintf("Strategy(%d)", s)
	}
}

// CheckKind selects the comparison a plan emits.
type CheckKind uint8

const (
	CheckNone CheckKind = iota
	// CheckAlwaysTrap: the access is out of range for every index.
	CheckAlwaysTrap
	// CheckIndexAboveLimit: index > Limit, Limit = static bound - end.
	CheckIndexAboveLimit
	// CheckIndexAboveBound: index > bound. Used when end fits in the guard.
	CheckIndexAboveBound
	// CheckIndexAtLeastBound: index >= bound. Used for single-byte accesses.
	CheckIndexAtLeastBound
	// CheckEndAboveBound: index + End > bound. The sum cannot overflow.
	CheckEndAboveBound
	// CheckEndAboveBoundWide: index + End > bound with the carry out of the
	// sum also treated as out of range.
	CheckEndAboveBoundWide
)

var checkKindNames = [...]string{
	CheckNone:              "none",
	CheckAlwaysTrap:        "always-trap",
	CheckIndexAboveLimit:   "index-above-limit",
	CheckIndexAboveBound:   "index-above-bound",
	CheckIndexAtLeastBound: "index-at-least-bound",
	CheckEndAboveBound:     "end-above-bound",
	CheckEndAboveBoundWide: "end-above-bound-wide",
}

func (k CheckKind) String() string {
	if int(k) < len(checkKindNames) {
		return checkKindNames[k]
	}
	return fmt.Sprintf("CheckKind(%d)", k)
}

// Dynamic reports whether the comparison reads the runtime bound.
func (k CheckKind) Dynamic() bool {
	return k >= CheckIndexAboveBound && k <= CheckEndAboveBoundWide
}

// Check is the comparison guarding one access.
type Check struct {
	// Bound is where the runtime bound is loaded from for dynamic kinds.
	Bound heap.Location
	Limit uint64
	End   uint64
	Kind  CheckKind
}

func (c Check) String() string {
	switch c.Kind {
	case CheckNone:
		return "none"
	case CheckAlwaysTrap:
		return "always out of bounds"
	case CheckIndexAboveLimit:
		return fmt.Sprintf("index > %#x", c.Limit)
	case CheckIndexAboveBound:
		return fmt.Sprintf("index > [%s]", c.Bound)
	case CheckIndexAtLeastBound:
		return fmt.Sprintf("index >= [%s]", c.Bound)
	case CheckEndAboveBound:
		return fmt.Sprintf("index+%d > [%s]", c.End, c.Bound)
	case CheckEndAboveBoundWide:
		return fmt.Sprintf("carry(index+%d) || index+%d > [%s]", c.End, c.End, c.Bound)
	default:
		return c.Kind.String()
	}
}

// MaskForm is how a masked plan combines the mask with the raw address.
type MaskForm uint8

const (
	MaskNone MaskForm = iota
	// MaskAnd computes addr & mask, redirecting out-of-range accesses to 0.
	MaskAnd
	// MaskSelect computes addr&mask | redirect&^mask.
	MaskSelect
)

func (f MaskForm) String() string {
	switch f {
	case MaskNone:
		return "none"
	case MaskAnd:
		return "and"
	case MaskSelect:
		return "select"
	default:
		return fmt.Sprintf("MaskForm(%d)", f)
	}
}

// Address describes the effective address computation base + index + Offset.
type Address struct {
	Base heap.Location
	// Offset is added to the zero-extended index.
	Offset uint64
	// Redirect is the address out-of-range masked accesses land on when Mask
	// is MaskSelect.
	Redirect uint64
	// Fold reports that Offset fits the target's addressing mode and needs
	// no separate add.
	Fold bool
	Mask MaskForm
}

// Plan is the decision for one access. Plans are immutable and comparable.
type Plan struct {
	Address Address
	Check   Check
	// Trap is the trap site a failed check branches to. Zero unless
	// Strategy is TrapOnOutOfRange.
	Trap       trap.SiteID
	Strategy   Strategy
	NeedsCheck bool
	// GuardFault reports that the memory instruction itself may touch the guard
	// region or the inaccessible tail of a reservation. The emitter must mark
	// it as a fault point for the signal handler.
	GuardFault bool
}

// AlwaysTraps reports whether the access can never succeed.
func (p Plan) AlwaysTraps() bool {
	return p.Check.Kind == CheckAlwaysTrap
}

func (p Plan) String() string {
	var b strings.Builder
	b.WriteString(p.Strategy.String())
	if p.NeedsCheck {
		fmt.Fprintf(&b, " [%s]", p.Check)
	}
	if p.Trap != 0 {
		fmt.Fprintf(&b, " trap#%d", p.Trap)
	}
	if !p.AlwaysTraps() {
		fmt.Fprintf(&b, " addr=%s+index", p.Address.Base)
		if p.Address.Offset != 0 {
			fmt.Fprintf(&b, "+%#x", p.Address.Offset)
			if p.Address.Fold {
				b.WriteString(" (folded)")
			}
		}
		if p.Address.Mask != MaskNone {
			fmt.Fprintf(&b, " mask=%s", p.Address.Mask)
			if p.Address.Mask == MaskSelect {
				fmt.Fprintf(&b, " redirect=%#x", p.Address.Redirect)
			}
		}
	}
	if p.GuardFault {
		b.WriteString(" guard-fault")
	}
	return b.String()
}
