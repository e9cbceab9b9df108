package planner

import (
	"fmt"

	"github.com/wippyai/wasm-heapcheck/heap"
	"github.com/wippyai/wasm-heapcheck/internal/checked"
	"github.com/wippyai/wasm-heapcheck/trap"
)

// StackPlan is a function-prologue stack overflow check. The stack grows down:
// the prologue traps when sp - FrameSize would fall below the limit.
type StackPlan struct {
	Limit     heap.Location
	FrameSize uint64
	Trap      trap.SiteID
	Strategy  Strategy
}

// PlanStackCheck plans the prologue check for a frame of frameSize bytes
// against the stack limit stored at limit. Stack checks always trap; masking
// has no safe address to fall back to.
func (p *Planner) PlanStackCheck(frameSize uint64, limit heap.Location, origin trap.Origin) StackPlan {
	return StackPlan{
		Limit:     limit,
		FrameSize: frameSize,
		Trap:      p.registry.Register(trap.StackOverflow, origin),
		Strategy:  TrapOnOutOfRange,
	}
}

// Overflows reports whether entering the frame at sp overflows the stack.
func (s StackPlan) Overflows(sp, limit uint64) bool {
	next, ok := checked.Sub(sp, s.FrameSize)
	return !ok || next < limit
}

// Evaluate runs the prologue check for a concrete stack pointer and limit.
func (s StackPlan) Evaluate(sp, limit uint64) Outcome {
	if s.Overflows(sp, limit) {
		return Outcome{Fault: true, Reason: trap.StackOverflow, Trap: s.Trap}
	}
	return Outcome{Address: sp - s.FrameSize}
}

func (s StackPlan) String() string {
	return fmt.Sprintf("%s [sp-%d < [%s]] trap#%d", s.Strategy, s.FrameSize, s.Limit, s.Trap)
}
