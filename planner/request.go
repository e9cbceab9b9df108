package planner

import (
	"fmt"

	"github.com/wippyai/wasm-heapcheck/errors"
	"github.com/wippyai/wasm-heapcheck/heap"
	"github.com/wippyai/wasm-heapcheck/internal/checked"
	"github.com/wippyai/wasm-heapcheck/trap"
)

// Width is the number of bytes an access touches.
type Width uint8

const (
	Width1  Width = 1
	Width2  Width = 2
	Width4  Width = 4
	Width8  Width = 8
	Width16 Width = 16
)

// Valid reports whether w is a width a guest instruction can encode.
func (w Width) Valid() bool {
	switch w {
	case Width1, Width2, Width4, Width8, Width16:
		return true
	}
	return false
}

// Direction distinguishes loads from stores.
type Direction uint8

const (
	Load Direction = iota
	Store
)

func (d Direction) String() string {
	if d == Store {
		return "store"
	}
	return "load"
}

// Request is one symbolic load or store to plan.
type Request struct {
	Origin    trap.Origin
	// Offset is the static offset immediate added to the dynamic index.
	Offset    uint64
	// IndexMax is the largest index value the IR builder can prove, e.g.
	// 0xffffffff for a zero-extended i32 used against a 64-bit memory. Zero
	// means unconstrained: the descriptor's full index width.
	IndexMax  uint64
	Width     Width
	Direction Direction
}

// End returns Offset + Width, the first byte past the access relative to the
// index. ok is false when the sum overflows 64 bits.
func (r Request) End() (end uint64, ok bool) {
	return checked.Add(r.Offset, uint64(r.Width))
}

// Reach returns the largest index value r can carry against d.
func (r Request) Reach(d *heap.Descriptor) uint64 {
	full := d.IndexWidth().Max()
	if r.IndexMax == 0 || r.IndexMax > full {
		return full
	}
	return r.IndexMax
}

// Validate checks the request against the shapes guest encodings produce.
func (r Request) Validate() error {
	if !r.Width.Valid() {
		return errors.New(errors.PhasePlan, errors.KindInvalidInput).
			Value(uint8(r.Width)).
			Detail("access width %d is not one of 1, 2, 4, 8, 16", r.Width).
			Build()
	}
	return nil
}

func (r Request) String() string {
	return fmt.Sprintf("%s%d offset=%#x at %s", r.Direction, uint8(r.Width)*8, r.Offset, r.Origin)
}
