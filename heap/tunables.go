package heap

import (
	"strconv"

	"github.com/wippyai/wasm-heapcheck/errors"
	"github.com/wippyai/wasm-heapcheck/internal/checked"
)

// PageSize is the WebAssembly page size in bytes.
const PageSize = 65536

const (
	maxPages32 = 1 << 16
	maxPages64 = 1 << 48
)

// MemoryType is a decoded memory declaration.
type MemoryType struct {
	Max      *uint64 // pages
	Min      uint64  // pages
	Memory64 bool
	Shared   bool
}

// Tunables select how memories are represented at runtime.
type Tunables struct {
	// StaticMaximumSize is the reservation size for memories whose maximum fits
	// in it. Zero disables reservations.
	StaticMaximumSize uint64
	// StaticGuardBytes is mapped past static bounds.
	StaticGuardBytes uint64
	// DynamicGuardBytes is mapped past the current length of dynamic memories.
	DynamicGuardBytes uint64
	// AddressBits is the host virtual address width. Zero means 64.
	AddressBits uint
	Layout      VMContextLayout
}

// DefaultTunables reserves 4 GiB plus a 2 GiB guard for every memory that fits
// and falls back to dynamic bounds with a 64 KiB guard.
func DefaultTunables() Tunables {
	return Tunables{
		StaticMaximumSize: 4 << 30,
		StaticGuardBytes:  2 << 30,
		DynamicGuardBytes: 64 << 10,
		AddressBits:       48,
		Layout:            DefaultLayout,
	}
}

// FromMemory builds the descriptor of memory index declared as mt.
func FromMemory(index uint32, mt MemoryType, t Tunables) (*Descriptor, error) {
	path := []string{"memory", strconv.FormatUint(uint64(index), 10)}

	width := Index32
	maxPages := uint64(maxPages32)
	if mt.Memory64 {
		width = Index64
		maxPages = maxPages64
	}

	if mt.Min > maxPages {
		return nil, errors.OutOfBounds(errors.PhaseConfig, append(path, "min"), mt.Min, maxPages)
	}
	if mt.Max != nil && *mt.Max > maxPages {
		return nil, errors.OutOfBounds(errors.PhaseConfig, append(path, "max"), *mt.Max, maxPages)
	}

	spec := Spec{
		IndexWidth:  width,
		AddressBits: t.AddressBits,
		Memory:      index,
		Base:        t.Layout.Base(index),
	}

	if mt.Max != nil && *mt.Max == mt.Min {
		minBytes, ok := checked.Mul(mt.Min, PageSize)
		if !ok {
			return nil, errors.Overflow(errors.PhaseConfig, path, "minimum byte length", mt.Min)
		}
		spec.Bound = Static(minBytes)
		spec.GuardBytes = t.StaticGuardBytes
		return New(spec)
	}

	if mt.Max != nil {
		maxPages = *mt.Max
	}
	maxBytes, fits := checked.Mul(maxPages, PageSize)

	if t.StaticMaximumSize > 0 && fits && maxBytes <= t.StaticMaximumSize {
		spec.Bound = Static(t.StaticMaximumSize)
		spec.GuardBytes = t.StaticGuardBytes
		spec.Reserved = true
		return New(spec)
	}

	spec.Bound = Dynamic(t.Layout.Length(index))
	spec.GuardBytes = t.DynamicGuardBytes
	if !mt.Shared {
		// A shared memory is never moved on growth.
		spec.Base = spec.Base.Reloading()
	}
	return New(spec)
}
