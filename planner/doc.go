// Package planner decides, for one guest load or store, whether a runtime bounds
// check is needed, which strategy enforces it and how the effective address is
// formed.
//
// # Planning
//
// A Planner is built once per compilation unit around that unit's trap registry
// and the target's addressing-mode capability:
//
//	reg := trap.NewRegistry()
//	p := planner.New(reg, planner.WithTarget(isa.AMD64{}))
//
//	plan := p.Plan(desc, planner.Request{
//		Offset: 16,
//		Width:  planner.Width4,
//		Origin: trap.Origin{Func: 2, Offset: 0x1c},
//	}, false)
//
// Plan is a pure function of its inputs apart from registering a trap site,
// and registration is deduplicated per instruction, so planning the same access
// twice yields == plans. The decision order is:
//
//	1. offset + width overflows 64 bits          -> unconditional trap
//	2. static bound, whole index range fits guard -> no check
//	3. static bound otherwise                     -> index > bound-end, or unconditional trap
//	4. dynamic bound                              -> compare against the loaded bound
//	5. spectre hardening                          -> branchless mask instead of a trap
//	6. offset folding                             -> asked of the target
//
// # Masking
//
// With spectre hardening the comparison result is broadcast into an address
// mask (all ones when in range, zero otherwise) and the memory operation always
// executes against the masked address. An out-of-range access is silently
// redirected instead of trapping, so callers that need a precise out-of-bounds
// diagnostic must not enable it. Unconditional traps and stack checks are never
// masked.
//
// # Evaluation
//
// Plan.Evaluate runs a plan against concrete values the way the emitted code
// would. Tests use it to show that both strategies agree on every index.
package planner
