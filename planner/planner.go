package planner

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-heapcheck/heap"
	"github.com/wippyai/wasm-heapcheck/internal/checked"
	"github.com/wippyai/wasm-heapcheck/isa"
	"github.com/wippyai/wasm-heapcheck/trap"
)

// Planner plans accesses for one compilation unit. A Planner is immutable after
// New and safe for concurrent use; the registry serializes site allocation.
type Planner struct {
	target      isa.Target
	registry    *trap.Registry
	redirect    uint64
	hasRedirect bool
}

// Option configures a Planner.
type Option func(*Planner)

// WithTarget sets the addressing-mode capability used for offset folding.
// The default target never folds.
func WithTarget(t isa.Target) Option {
	return func(p *Planner) {
		if t != nil {
			p.target = t
		}
	}
}

// WithRedirect makes masked plans redirect out-of-range accesses to addr
// instead of address zero. addr must stay mapped and harmless for a 16-byte
// access for the lifetime of the code.
func WithRedirect(addr uint64) Option {
	return func(p *Planner) {
		p.redirect = addr
		p.hasRedirect = true
	}
}

// New creates a planner that registers trap sites in reg. A nil reg gets a
// fresh registry owned by the planner.
func New(reg *trap.Registry, opts ...Option) *Planner {
	if reg == nil {
		reg = trap.NewRegistry()
	}
	p := &Planner{
		target:   isa.None{},
		registry: reg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the trap-site registry the planner writes to.
func (p *Planner) Registry() *trap.Registry { return p.registry }

// Target returns the addressing-mode capability in use.
func (p *Planner) Target() isa.Target { return p.target }

// Plan decides how to guard req against d. spectre selects the branchless
// masking strategy for accesses that can be in range.
func (p *Planner) Plan(d *heap.Descriptor, req Request, spectre bool) Plan {
	check, guardFault := decide(d, req)
	switch {
	case check.Kind == CheckNone:
		return p.unchecked(d, req, guardFault)
	case check.Kind == CheckAlwaysTrap:
		return p.alwaysTrap(d, req)
	case spectre:
		return p.masked(d, req, check, guardFault)
	default:
		return p.trapping(d, req, check, guardFault)
	}
}

// decide picks the comparison for req and reports whether the access itself
// may land in the guard region.
func decide(d *heap.Descriptor, req Request) (Check, bool) {
	end, ok := req.End()
	if !ok {
		return Check{Kind: CheckAlwaysTrap}, false
	}
	if d.Bound().Kind == heap.BoundStatic {
		return staticCheck(d, req, end)
	}
	return dynamicCheck(d, req, end)
}

// staticCheck handles a bound known at compile time. The check is elided when
// every reachable index plus end stays within bound + guard.
func staticCheck(d *heap.Descriptor, req Request, end uint64) (Check, bool) {
	bound := d.Bound().Bytes
	limit, _ := d.Limit()
	reach := req.Reach(d)

	if room, ok := checked.Sub(limit, end); ok && reach <= room {
		return Check{Kind: CheckNone}, reach+end > bound || d.Reserved()
	}
	if end > bound {
		return Check{Kind: CheckAlwaysTrap}, false
	}
	return Check{Kind: CheckIndexAboveLimit, Limit: bound - end}, d.Reserved()
}

// dynamicCheck handles a bound loaded at runtime.
func dynamicCheck(d *heap.Descriptor, req Request, end uint64) (Check, bool) {
	c := Check{Bound: d.Bound().Location, End: end}
	switch {
	case end <= d.GuardBytes():
		// index <= bound keeps the access below bound + guard.
		c.Kind = CheckIndexAboveBound
		return c, true
	case end == 1:
		c.Kind = CheckIndexAtLeastBound
	default:
		if _, ok := checked.Add(req.Reach(d), end); ok {
			c.Kind = CheckEndAboveBound
		} else {
			c.Kind = CheckEndAboveBoundWide
		}
	}
	return c, false
}

func (p *Planner) address(d *heap.Descriptor, req Request) Address {
	return Address{
		Base:   d.Base(),
		Offset: req.Offset,
		Fold:   p.target.FoldsOffset(req.Offset, uint8(req.Width)),
	}
}

func (p *Planner) unchecked(d *heap.Descriptor, req Request, guardFault bool) Plan {
	return Plan{
		Address:    p.address(d, req),
		Check:      Check{Kind: CheckNone},
		Strategy:   StrategyNone,
		GuardFault: guardFault,
	}
}

func (p *Planner) trapping(d *heap.Descriptor, req Request, c Check, guardFault bool) Plan {
	return Plan{
		Address:    p.address(d, req),
		Check:      c,
		Trap:       p.registry.Register(trap.HeapOutOfBounds, req.Origin),
		Strategy:   TrapOnOutOfRange,
		NeedsCheck: true,
		GuardFault: guardFault,
	}
}

// masked never folds the offset: the mask has to cover the final address.
func (p *Planner) masked(d *heap.Descriptor, req Request, c Check, guardFault bool) Plan {
	addr := Address{
		Base:   d.Base(),
		Offset: req.Offset,
		Mask:   MaskAnd,
	}
	if p.hasRedirect {
		addr.Mask = MaskSelect
		addr.Redirect = p.redirect
	}
	return Plan{
		Address:    addr,
		Check:      c,
		Strategy:   MaskToSafeAddress,
		NeedsCheck: true,
		GuardFault: guardFault,
	}
}

// alwaysTrap ignores spectre hardening: there is no in-range address to mask to.
func (p *Planner) alwaysTrap(d *heap.Descriptor, req Request) Plan {
	Logger().Debug("access always out of bounds",
		zap.Stringer("origin", req.Origin),
		zap.Uint64("offset", req.Offset),
		zap.Uint8("width", uint8(req.Width)),
		zap.Stringer("heap", d))
	return Plan{
		Check:      Check{Kind: CheckAlwaysTrap},
		Trap:       p.registry.Register(trap.HeapOutOfBounds, req.Origin),
		Strategy:   TrapOnOutOfRange,
		NeedsCheck: true,
	}
}
