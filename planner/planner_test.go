package planner

import (
	"math"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-heapcheck/heap"
	"github.com/wippyai/wasm-heapcheck/isa"
	"github.com/wippyai/wasm-heapcheck/trap"
)

func staticHeap(width heap.IndexWidth, bound, guard uint64) *heap.Descriptor {
	return heap.MustNew(heap.Spec{
		IndexWidth: width,
		Bound:      heap.Static(bound),
		GuardBytes: guard,
		Base:       heap.Register("r14"),
	})
}

func dynamicHeap(width heap.IndexWidth, guard uint64) *heap.Descriptor {
	return heap.MustNew(heap.Spec{
		IndexWidth: width,
		Bound:      heap.Dynamic(heap.VMContext(24)),
		GuardBytes: guard,
		Base:       heap.VMContext(16).Reloading(),
	})
}

func TestPlan_Decisions(t *testing.T) {
	classic := staticHeap(heap.Index32, 4<<30, 2<<30)
	small := staticHeap(heap.Index32, 65536, 0)
	reserved := heap.MustNew(heap.Spec{
		IndexWidth: heap.Index32,
		Bound:      heap.Static(1 << 20),
		Base:       heap.Register("r14"),
		Reserved:   true,
	})

	tests := []struct {
		name       string
		heap       *heap.Descriptor
		req        Request
		want       CheckKind
		limit      uint64
		guardFault bool
	}{
		{
			name: "32-bit index in 4GiB reservation with guard",
			heap: classic,
			req:  Request{Offset: 0x1000, Width: Width8},
			want: CheckNone,
			// index 0xffffffff + 0x1008 lands in the guard
			guardFault: true,
		},
		{
			name: "offset at the edge of the guard",
			heap: classic,
			req:  Request{Offset: 2<<30 - 3, Width: Width4},
			want: CheckNone, guardFault: true,
		},
		{
			name:  "offset one past the guard needs a check",
			heap:  classic,
			req:   Request{Offset: 2<<30 - 2, Width: Width4},
			want:  CheckIndexAboveLimit,
			limit: 4<<30 - (2<<30 + 2),
		},
		{
			name: "proven small index elides on a small heap",
			heap: small,
			req:  Request{Offset: 16, Width: Width4, IndexMax: 100},
			want: CheckNone,
		},
		{
			name:  "unconstrained index on a small heap",
			heap:  small,
			req:   Request{Offset: 16, Width: Width4},
			want:  CheckIndexAboveLimit,
			limit: 65536 - 20,
		},
		{
			name:  "access exactly filling the heap",
			heap:  small,
			req:   Request{Offset: 65536 - 16, Width: Width16},
			want:  CheckIndexAboveLimit,
			limit: 0,
		},
		{
			name: "access past the static bound",
			heap: small,
			req:  Request{Offset: 65536 - 15, Width: Width16},
			want: CheckAlwaysTrap,
		},
		{
			name:       "reserved bound may fault in the tail",
			heap:       reserved,
			req:        Request{Width: Width1},
			want:       CheckIndexAboveLimit,
			limit:      1<<20 - 1,
			guardFault: true,
		},
		{
			name:       "dynamic end within guard",
			heap:       dynamicHeap(heap.Index32, 64<<10),
			req:        Request{Offset: 100, Width: Width8},
			want:       CheckIndexAboveBound,
			guardFault: true,
		},
		{
			name: "dynamic single byte without guard",
			heap: dynamicHeap(heap.Index32, 0),
			req:  Request{Width: Width1},
			want: CheckIndexAtLeastBound,
		},
		{
			name: "dynamic 32-bit index cannot overflow",
			heap: dynamicHeap(heap.Index32, 0),
			req:  Request{Offset: 1 << 40, Width: Width8},
			want: CheckEndAboveBound,
		},
		{
			name: "dynamic 64-bit index needs the wide check",
			heap: dynamicHeap(heap.Index64, 0),
			req:  Request{Offset: 8, Width: Width8},
			want: CheckEndAboveBoundWide,
		},
		{
			name: "dynamic 64-bit heap with proven 32-bit index",
			heap: dynamicHeap(heap.Index64, 0),
			req:  Request{Offset: 8, Width: Width8, IndexMax: math.MaxUint32},
			want: CheckEndAboveBound,
		},
		{
			name: "offset plus width overflows on a static heap",
			heap: classic,
			req:  Request{Offset: math.MaxUint64 - 1, Width: Width4},
			want: CheckAlwaysTrap,
		},
		{
			name: "offset plus width overflows on a dynamic heap",
			heap: dynamicHeap(heap.Index64, 64<<10),
			req:  Request{Offset: math.MaxUint64, Width: Width1},
			want: CheckAlwaysTrap,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(trap.NewRegistry())
			plan := p.Plan(tt.heap, tt.req, false)

			if plan.Check.Kind != tt.want {
				t.Fatalf("check = %v, want %v (%s)", plan.Check.Kind, tt.want, plan)
			}
			if tt.want == CheckIndexAboveLimit && plan.Check.Limit != tt.limit {
				t.Errorf("limit = %#x, want %#x", plan.Check.Limit, tt.limit)
			}
			if plan.GuardFault != tt.guardFault {
				t.Errorf("GuardFault = %v, want %v", plan.GuardFault, tt.guardFault)
			}
			if tt.want.Dynamic() && plan.Check.Bound != tt.heap.Bound().Location {
				t.Errorf("bound location = %v", plan.Check.Bound)
			}

			switch tt.want {
			case CheckNone:
				if plan.NeedsCheck || plan.Strategy != StrategyNone || plan.Trap != 0 {
					t.Errorf("elided plan carries a check: %s", plan)
				}
			default:
				if !plan.NeedsCheck || plan.Strategy != TrapOnOutOfRange {
					t.Errorf("plan = %s, want a trapping check", plan)
				}
				site, ok := p.Registry().Lookup(plan.Trap)
				if !ok || site.Reason != trap.HeapOutOfBounds {
					t.Errorf("trap site = %+v, %v", site, ok)
				}
			}
		})
	}
}

func TestPlan_OffsetOverflowTrapsEverywhere(t *testing.T) {
	heaps := []*heap.Descriptor{
		staticHeap(heap.Index32, 4<<30, 2<<30),
		staticHeap(heap.Index64, 0, 0),
		dynamicHeap(heap.Index32, 0),
		dynamicHeap(heap.Index64, 2<<30),
	}
	for _, d := range heaps {
		for _, spectre := range []bool{false, true} {
			for _, w := range []Width{Width1, Width2, Width4, Width8, Width16} {
				p := New(nil)
				plan := p.Plan(d, Request{Offset: math.MaxUint64 - uint64(w) + 1, Width: w}, spectre)
				if !plan.AlwaysTraps() || plan.Strategy != TrapOnOutOfRange || plan.Trap == 0 {
					t.Errorf("%s width %d spectre=%v: %s", d, w, spectre, plan)
				}
			}
		}
	}
}

func TestPlan_Idempotent(t *testing.T) {
	reg := trap.NewRegistry()
	p := New(reg, WithTarget(isa.ARM64{}), WithRedirect(0x1000))

	heaps := []*heap.Descriptor{
		staticHeap(heap.Index32, 65536, 0),
		dynamicHeap(heap.Index64, 0),
	}
	for _, d := range heaps {
		for _, spectre := range []bool{false, true} {
			req := Request{Offset: 32, Width: Width8, Origin: trap.Origin{Func: 3, Offset: 0x40}}
			a := p.Plan(d, req, spectre)
			b := p.Plan(d, req, spectre)
			if a != b {
				t.Errorf("%s spectre=%v: %s != %s", d, spectre, a, b)
			}
		}
	}
	if reg.Len() != 1 {
		t.Errorf("registry holds %d sites, want 1 for one origin", reg.Len())
	}
}

func TestPlan_Folding(t *testing.T) {
	d := staticHeap(heap.Index32, 4<<30, 2<<30)
	tests := []struct {
		target isa.Target
		offset uint64
		width  Width
		fold   bool
	}{
		{isa.None{}, 8, Width4, false},
		{isa.AMD64{}, 0x7fffffff, Width1, true},
		{isa.AMD64{}, 0x80000000, Width1, false},
		{isa.ARM64{}, 255, Width8, true},
		{isa.ARM64{}, 4095 * 8, Width8, true},
		{isa.ARM64{}, 257, Width8, false},
		{isa.RISCV64{}, 2047, Width4, true},
		{isa.RISCV64{}, 2048, Width4, false},
	}
	for _, tt := range tests {
		p := New(nil, WithTarget(tt.target))
		plan := p.Plan(d, Request{Offset: tt.offset, Width: tt.width}, false)
		if plan.Address.Fold != tt.fold {
			t.Errorf("%s offset %#x width %d: fold = %v, want %v", tt.target.Name(), tt.offset, tt.width, plan.Address.Fold, tt.fold)
		}
		if plan.Address.Offset != tt.offset || plan.Address.Base != d.Base() {
			t.Errorf("address = %+v", plan.Address)
		}
	}

	// Masked plans keep the add separate.
	p := New(nil, WithTarget(isa.AMD64{}))
	plan := p.Plan(dynamicHeap(heap.Index32, 0), Request{Offset: 8, Width: Width4}, true)
	if plan.Address.Fold {
		t.Error("masked plan must not fold its offset")
	}
}

func TestPlan_Masked(t *testing.T) {
	d := dynamicHeap(heap.Index64, 0)
	req := Request{Offset: 4, Width: Width4, Origin: trap.Origin{Func: 1}}

	reg := trap.NewRegistry()
	plan := New(reg).Plan(d, req, true)
	if plan.Strategy != MaskToSafeAddress || !plan.NeedsCheck {
		t.Fatalf("plan = %s", plan)
	}
	if plan.Trap != 0 || reg.Len() != 0 {
		t.Error("masked plan must not allocate a trap site")
	}
	if plan.Address.Mask != MaskAnd {
		t.Errorf("mask form = %v, want and", plan.Address.Mask)
	}

	sel := New(nil, WithRedirect(0xdead0000)).Plan(d, req, true)
	if sel.Address.Mask != MaskSelect || sel.Address.Redirect != 0xdead0000 {
		t.Errorf("redirect plan = %s", sel)
	}
	if sel.Check != plan.Check {
		t.Errorf("redirect target changed the comparison: %s vs %s", sel.Check, plan.Check)
	}

	// The comparison is the one the trapping plan uses.
	trapping := New(nil).Plan(d, req, false)
	if trapping.Check != plan.Check {
		t.Errorf("masked check %s differs from trapping check %s", plan.Check, trapping.Check)
	}
}

func TestPlan_ElidedIgnoresSpectre(t *testing.T) {
	d := staticHeap(heap.Index32, 4<<30, 2<<30)
	plan := New(nil).Plan(d, Request{Width: Width8}, true)
	if plan.NeedsCheck || plan.Strategy != StrategyNone {
		t.Errorf("plan = %s", plan)
	}
}

func TestPlan_LogsAlwaysTrap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	d := staticHeap(heap.Index32, 65536, 0)
	New(nil).Plan(d, Request{Offset: 70000, Width: Width4, Origin: trap.Origin{Func: 7, Offset: 0x12}}, false)

	entries := logs.FilterMessage("access always out of bounds").All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["offset"] != uint64(70000) {
		t.Errorf("offset field = %v", fields["offset"])
	}
	if fields["origin"] != "func7+0x12" {
		t.Errorf("origin field = %v", fields["origin"])
	}
}

func TestRequestValidate(t *testing.T) {
	if err := (Request{Width: Width16}).Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if err := (Request{Width: 3}).Validate(); err == nil {
		t.Error("width 3 should be rejected")
	}
}

func TestRequestReach(t *testing.T) {
	d32 := staticHeap(heap.Index32, 0, 0)
	d64 := staticHeap(heap.Index64, 0, 0)
	if got := (Request{}).Reach(d32); got != math.MaxUint32 {
		t.Errorf("default 32-bit reach = %#x", got)
	}
	if got := (Request{IndexMax: math.MaxUint64}).Reach(d32); got != math.MaxUint32 {
		t.Errorf("reach clamps to width: %#x", got)
	}
	if got := (Request{IndexMax: 10}).Reach(d64); got != 10 {
		t.Errorf("proven reach = %d", got)
	}
}

func BenchmarkPlan(b *testing.B) {
	p := New(nil, WithTarget(isa.AMD64{}))
	static := staticHeap(heap.Index32, 4<<30, 2<<30)
	dynamic := dynamicHeap(heap.Index64, 64<<10)
	req := Request{Offset: 0x100000, Width: Width8, Origin: trap.Origin{Func: 1, Offset: 2}}

	b.Run("static", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = p.Plan(static, req, false)
		}
	})
	b.Run("dynamic", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = p.Plan(dynamic, req, false)
		}
	})
	b.Run("masked", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = p.Plan(dynamic, req, true)
		}
	})
}
