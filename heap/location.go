package heap

import "fmt"

// LocationKind says where a runtime value lives.
type LocationKind uint8

const (
	LocationNone LocationKind = iota
	LocationRegister
	LocationVMContext
	LocationGlobal
)

// Location is an opaque description of where the emitter obtains a heap base,
// a dynamic bound or a stack limit. The planner never interprets it beyond
// passing it through to the plan.
type Location struct {
	Register string
	// Offset is the VM-context byte offset, or the global index.
	Offset uint32
	Kind   LocationKind
	// Reload marks a value that may change across calls (a base of a memory
	// that can move when it grows) and must be reloaded after each call.
	Reload bool
}

// Register returns a location pinned in a named register.
func Register(name string) Location {
	return Location{Kind: LocationRegister, Register: name}
}

// VMContext returns a location loaded from the VM context at offset.
func VMContext(offset uint32) Location {
	return Location{Kind: LocationVMContext, Offset: offset}
}

// Global returns a location loaded from the module global with the given index.
func Global(index uint32) Location {
	return Location{Kind: LocationGlobal, Offset: index}
}

// Reloading returns a copy of l marked as reloaded across calls.
func (l Location) Reloading() Location {
	l.Reload = true
	return l
}

// IsZero reports whether l is unset.
func (l Location) IsZero() bool {
	return l.Kind == LocationNone
}

func (l Location) String() string {
	var s string
	switch l.Kind {
	case LocationRegister:
		s = "reg:" + l.Register
	case LocationVMContext:
		s = fmt.Sprintf("vmctx+%d", l.Offset)
	case LocationGlobal:
		s = fmt.Sprintf("global%d", l.Offset)
	default:
		return "none"
	}
	if l.Reload {
		s += " (reload)"
	}
	return s
}

// VMContextLayout gives the VM-context offsets of per-memory fields.
// Memory i's base lives at MemoryOffset + i*MemoryStride and its current
// byte length 8 bytes after it.
type VMContextLayout struct {
	StackLimitOffset uint32
	MemoryOffset     uint32
	MemoryStride     uint32
}

// DefaultLayout is the layout used when none is configured.
var DefaultLayout = VMContextLayout{
	StackLimitOffset: 0,
	MemoryOffset:     16,
	MemoryStride:     16,
}

// Base returns the location of memory index's base pointer.
func (v VMContextLayout) Base(index uint32) Location {
	return VMContext(v.MemoryOffset + index*v.MemoryStride)
}

// Length returns the location of memory index's current byte length.
func (v VMContextLayout) Length(index uint32) Location {
	return VMContext(v.MemoryOffset + index*v.MemoryStride + 8)
}

// StackLimit returns the location of the stack limit.
func (v VMContextLayout) StackLimit() Location {
	return VMContext(v.StackLimitOffset)
}
