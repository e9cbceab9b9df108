package frontend

import (
	"sort"
	"sync"

	"github.com/wippyai/wasm-heapcheck/heap"
	"github.com/wippyai/wasm-heapcheck/planner"
	"github.com/wippyai/wasm-heapcheck/trap"
)

// Access is a decoded load or store.
type Access struct {
	Name   string
	Offset uint64
	Memory uint32
	Width  uint8
	Store  bool
	Atomic bool
}

// Entry pairs an access with its plan.
type Entry struct {
	Access Access
	Origin trap.Origin
	Plan   planner.Plan
}

// Function holds the plans of one defined function.
type Function struct {
	Entries []Entry
	Stack   planner.StackPlan
	Locals  uint64
	// TrapSites counts the sites registered for this function, the prologue
	// check included.
	TrapSites int
	Index     uint32
}

// siteCounter counts registered trap sites per function.
type siteCounter struct {
	counts map[uint32]int
	mu     sync.Mutex
}

func newSiteCounter() *siteCounter {
	return &siteCounter{counts: make(map[uint32]int)}
}

func (c *siteCounter) OnSiteRegistered(s trap.Site) {
	c.mu.Lock()
	c.counts[s.Origin.Func]++
	c.mu.Unlock()
}

func (c *siteCounter) count(fn uint32) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[fn]
}

// Summary counts plans by outcome.
type Summary struct {
	Functions  int
	Accesses   int
	Elided     int
	Trapping   int
	Masked     int
	AlwaysTrap int
	GuardFault int
	Folded     int
}

func (s *Summary) add(p planner.Plan) {
	s.Accesses++
	switch p.Strategy {
	case planner.StrategyNone:
		s.Elided++
	case planner.TrapOnOutOfRange:
		s.Trapping++
	case planner.MaskToSafeAddress:
		s.Masked++
	}
	if p.AlwaysTraps() {
		s.AlwaysTrap++
	}
	if p.GuardFault {
		s.GuardFault++
	}
	if p.Address.Fold {
		s.Folded++
	}
}

// Report is the analysis of one module.
type Report struct {
	Registry  *trap.Registry
	Name      string
	Memories  []*heap.Descriptor
	Functions []Function
	Summary   Summary
	Spectre   bool
	Validated bool
}

// Entries returns every planned access ordered by function and offset.
func (r *Report) Entries() []Entry {
	var out []Entry
	for _, f := range r.Functions {
		out = append(out, f.Entries...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return originLess(out[i].Origin, out[j].Origin)
	})
	return out
}

// Traps returns the registered trap sites ordered by origin.
func (r *Report) Traps() []trap.Site {
	sites := r.Registry.Sites()
	sort.SliceStable(sites, func(i, j int) bool {
		if sites[i].Origin == sites[j].Origin {
			return sites[i].Reason < sites[j].Reason
		}
		return originLess(sites[i].Origin, sites[j].Origin)
	})
	return sites
}

// Diagnose maps a trap site back to its instruction and message.
func (r *Report) Diagnose(id trap.SiteID) (trap.Site, string, bool) {
	return r.Registry.Diagnose(id)
}

// Memory returns the descriptor of memory index i.
func (r *Report) Memory(i uint32) (*heap.Descriptor, bool) {
	if int(i) >= len(r.Memories) {
		return nil, false
	}
	return r.Memories[i], true
}

func originLess(a, b trap.Origin) bool {
	if a.Func != b.Func {
		return a.Func < b.Func
	}
	return a.Offset < b.Offset
}
