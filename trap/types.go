package trap

import "fmt"

// Reason is the user-visible cause of a trap.
type Reason uint8

const (
	HeapOutOfBounds Reason = iota + 1
	StackOverflow
	IntegerOverflow
	Unreachable
)

func (r Reason) String() string {
	switch r {
	case HeapOutOfBounds:
		return "heap-out-of-bounds"
	case StackOverflow:
		return "stack-overflow"
	case IntegerOverflow:
		return "integer-overflow"
	case Unreachable:
		return "unreachable"
	default:
		return fmt.Sprintf("Reason(%d)", uint8(r))
	}
}

// Describe returns the diagnostic message the runtime reports for r.
func Describe(r Reason) string {
	switch r {
	case HeapOutOfBounds:
		return "out of bounds memory access"
	case StackOverflow:
		return "stack overflow"
	case IntegerOverflow:
		return "integer overflow"
	case Unreachable:
		return "unreachable executed"
	default:
		return "unknown trap"
	}
}

// SiteID is a registered trap site. SiteID 0 is reserved and always invalid.
type SiteID uint32

// Origin is the guest program location a site was planned for.
type Origin struct {
	Func   uint32 // function index
	Offset uint32 // byte offset of the instruction within the code section body
}

func (o Origin) String() string {
	return fmt.Sprintf("func%d+%#x", o.Func, o.Offset)
}

// Site is one registered trap site.
type Site struct {
	Origin Origin
	ID     SiteID
	Reason Reason
}

// Observer receives every newly registered site.
type Observer interface {
	OnSiteRegistered(Site)
}
