package heap

import (
	"fmt"
	"strconv"

	"github.com/wippyai/wasm-heapcheck/errors"
	"github.com/wippyai/wasm-heapcheck/internal/checked"
)

// IndexWidth is the width of the guest-supplied index operand.
type IndexWidth uint8

const (
	Index32 IndexWidth = 32
	Index64 IndexWidth = 64
)

// Max returns the largest index value the guest can supply.
func (w IndexWidth) Max() uint64 {
	return checked.Max(uint(w))
}

func (w IndexWidth) String() string {
	switch w {
	case Index32:
		return "i32"
	case Index64:
		return "i64"
	default:
		return fmt.Sprintf("IndexWidth(%d)", uint8(w))
	}
}

// BoundKind distinguishes compile-time from runtime bounds.
type BoundKind uint8

const (
	BoundStatic BoundKind = iota
	BoundDynamic
)

func (k BoundKind) String() string {
	if k == BoundDynamic {
		return "dynamic"
	}
	return "static"
}

// Bound is either a static byte length or a location to load the current
// byte length from.
type Bound struct {
	Location Location
	Bytes    uint64
	Kind     BoundKind
}

// Static returns a bound fixed at compile time.
func Static(bytes uint64) Bound {
	return Bound{Kind: BoundStatic, Bytes: bytes}
}

// Dynamic returns a bound loaded from loc before each check.
func Dynamic(loc Location) Bound {
	return Bound{Kind: BoundDynamic, Location: loc}
}

func (b Bound) String() string {
	if b.Kind == BoundDynamic {
		return "dynamic(" + b.Location.String() + ")"
	}
	return "static(" + strconv.FormatUint(b.Bytes, 10) + ")"
}

// Spec is the input to New.
type Spec struct {
	Base       Location
	Bound      Bound
	GuardBytes uint64
	// AddressBits is the host's usable virtual address width. Zero means 64.
	AddressBits uint
	// Memory is the memory index, used only to label errors.
	Memory     uint32
	IndexWidth IndexWidth
	// Reserved marks a static bound that is an address-space reservation whose
	// tail beyond the live length is mapped inaccessible.
	Reserved bool
}

// Descriptor is the validated, immutable description of one linear memory.
type Descriptor struct {
	base        Location
	bound       Bound
	guard       uint64
	limit       uint64
	addressBits uint
	memory      uint32
	width       IndexWidth
	reserved    bool
}

// New validates spec and returns its descriptor. It fails with a
// configuration error when bound plus guard overflows 64 bits or does not fit
// the host address space.
func New(spec Spec) (*Descriptor, error) {
	path := []string{"memory", strconv.FormatUint(uint64(spec.Memory), 10)}

	if spec.IndexWidth != Index32 && spec.IndexWidth != Index64 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(path...).
			Value(uint8(spec.IndexWidth)).
			Detail("index width must be 32 or 64").
			Build()
	}

	bits := spec.AddressBits
	if bits == 0 {
		bits = 64
	}
	if bits > 64 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(path...).
			Setting("host_address_bits").
			Value(bits).
			Detail("host address width %d exceeds 64 bits", bits).
			Build()
	}
	span := checked.Span(bits)

	d := &Descriptor{
		base:        spec.Base,
		bound:       spec.Bound,
		guard:       spec.GuardBytes,
		addressBits: bits,
		memory:      spec.Memory,
		width:       spec.IndexWidth,
		reserved:    spec.Reserved,
	}

	switch spec.Bound.Kind {
	case BoundStatic:
		limit, ok := checked.Add(spec.Bound.Bytes, spec.GuardBytes)
		if !ok {
			return nil, errors.New(errors.PhaseConfig, errors.KindOverflow).
				Path(path...).
				Value(spec.GuardBytes).
				Detail("bound %d plus guard %d overflows 64 bits", spec.Bound.Bytes, spec.GuardBytes).
				Build()
		}
		if limit > span {
			return nil, errors.New(errors.PhaseConfig, errors.KindOverflow).
				Path(path...).
				Value(limit).
				Detail("bound plus guard %#x exceeds the %d-bit host address space", limit, bits).
				Build()
		}
		d.limit = limit

	case BoundDynamic:
		if spec.Bound.Location.IsZero() {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path(path...).
				Detail("dynamic bound requires a bound location").
				Build()
		}
		if spec.GuardBytes > span {
			return nil, errors.New(errors.PhaseConfig, errors.KindOverflow).
				Path(path...).
				Value(spec.GuardBytes).
				Detail("guard %#x exceeds the %d-bit host address space", spec.GuardBytes, bits).
				Build()
		}

	default:
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(path...).
			Value(uint8(spec.Bound.Kind)).
			Detail("unknown bound kind").
			Build()
	}

	return d, nil
}

// MustNew is like New but panics on error. Intended for tests and static tables.
func MustNew(spec Spec) *Descriptor {
	d, err := New(spec)
	if err != nil {
		panic(err)
	}
	return d
}

// IndexWidth returns the guest index width.
func (d *Descriptor) IndexWidth() IndexWidth { return d.width }

// Bound returns the bound representation.
func (d *Descriptor) Bound() Bound { return d.bound }

// GuardBytes returns the number of guard bytes mapped past the bound.
func (d *Descriptor) GuardBytes() uint64 { return d.guard }

// Base returns where the heap base is obtained.
func (d *Descriptor) Base() Location { return d.base }

// Reserved reports whether the static bound is a reservation rather than the live length.
func (d *Descriptor) Reserved() bool { return d.reserved }

// Memory returns the memory index the descriptor was built for.
func (d *Descriptor) Memory() uint32 { return d.memory }

// AddressBits returns the host address width the descriptor was validated against.
func (d *Descriptor) AddressBits() uint { return d.addressBits }

// Limit returns bound+guard for a static bound. ok is false for dynamic bounds.
func (d *Descriptor) Limit() (limit uint64, ok bool) {
	if d.bound.Kind != BoundStatic {
		return 0, false
	}
	return d.limit, true
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("memory%d{%s %s guard=%d base=%s}", d.memory, d.width, d.bound, d.guard, d.base)
}
