// Package heapcheck decides how compiled WebAssembly code guards its linear
// memory accesses.
//
// For every load and store the planner picks the cheapest sound bounds check:
// none when the reachable addresses stay inside the memory plus its guard
// region, a compare against a static limit or a loaded bound otherwise, and a
// branchless mask instead of a trap when Spectre hardening is on. Each
// trapping check gets a trap site so a runtime fault can be mapped back to
// the instruction that caused it.
//
// # Architecture Overview
//
//	heapcheck/           Root package with the Analyze convenience entry point
//	├── heap/            Memory descriptors, bound kinds and tunables
//	├── planner/         Bounds-check planning, masking and plan evaluation
//	├── trap/            Trap-site registry and trap reasons
//	├── isa/             Addressing-mode capabilities per target
//	├── config/          YAML and key=value settings
//	├── frontend/        Module analysis over the binary format
//	├── errors/          Structured error types for debugging
//	└── cmd/heapcheck/   CLI and interactive plan explorer
//
// # Quick Start
//
// Plan every access in a module with the host defaults:
//
//	report, err := heapcheck.Analyze(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range report.Entries() {
//	    fmt.Println(e.Origin, e.Access.Name, e.Plan)
//	}
//
// Settings use the same key=value form as the CLI:
//
//	report, err := heapcheck.Analyze(ctx, wasmBytes,
//	    "static_memory_maximum_size=0",
//	    "enable_heap_access_spectre_mitigation=true")
//
// Planning a single access against a hand-built descriptor:
//
//	d := heap.MustNew(heap.Spec{
//	    IndexWidth: heap.Index32,
//	    Bound:      heap.Static(4 << 30),
//	    GuardBytes: 2 << 30,
//	})
//	p := planner.New(nil, planner.WithTarget(isa.AMD64{}))
//	plan := p.Plan(d, planner.Request{Offset: 16, Width: planner.Width4}, false)
//
// # Thread Safety
//
// Planner and Registry are safe for concurrent use. A Report is immutable
// once returned.
package heapcheck
