package frontend

import (
	"context"
	"math"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-heapcheck/config"
	"github.com/wippyai/wasm-heapcheck/errors"
	"github.com/wippyai/wasm-heapcheck/heap"
	"github.com/wippyai/wasm-heapcheck/internal/checked"
	"github.com/wippyai/wasm-heapcheck/internal/wasm"
	"github.com/wippyai/wasm-heapcheck/planner"
	"github.com/wippyai/wasm-heapcheck/trap"
)

// Frame layout assumed for prologue stack checks: every local spills to an
// 8-byte slot, plus the return address and saved frame pointer.
const (
	slotSize      = 8
	frameOverhead = 16
)

// FrameSize returns the stack frame of a function with n locals. A frame too
// large for 64 bits saturates, so its prologue check always traps.
func FrameSize(locals uint64) uint64 {
	slots, ok := checked.Mul(locals, slotSize)
	if !ok {
		return math.MaxUint64
	}
	size, ok := checked.Add(slots, frameOverhead)
	if !ok {
		return math.MaxUint64
	}
	return size
}

// Analyze plans every memory access and prologue stack check in a binary
// module. A nil cfg means config.Default().
func Analyze(ctx context.Context, data []byte, cfg *config.Config) (*Report, error) {
	return analyze(ctx, "", data, cfg)
}

func analyze(ctx context.Context, name string, data []byte, cfg *config.Config) (*Report, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m, err := wasm.ParseModule(data)
	if err != nil {
		return nil, errors.DecodeFailed("module", err)
	}

	report := &Report{
		Name:     name,
		Registry: trap.NewRegistry(),
		Spectre:  cfg.Spectre,
	}

	if cfg.ValidateModules {
		switch {
		case m.Memory64(), m.MultiMemory():
			Logger().Debug("skipping validation",
				zap.String("module", name),
				zap.Bool("memory64", m.Memory64()),
				zap.Int("memories", len(m.Memories)))
		default:
			if err := validate(ctx, data); err != nil {
				return nil, errors.ValidationFailed(err)
			}
			report.Validated = true
		}
	}

	tunables := cfg.Tunables()
	for i, mem := range m.Memories {
		d, err := heap.FromMemory(uint32(i), heap.MemoryType{
			Max:      mem.Max,
			Min:      mem.Min,
			Memory64: mem.Memory64,
			Shared:   mem.Shared,
		}, tunables)
		if err != nil {
			return nil, err
		}
		report.Memories = append(report.Memories, d)
	}

	opts, err := cfg.PlannerOptions()
	if err != nil {
		return nil, err
	}
	p := planner.New(report.Registry, opts...)

	counter := newSiteCounter()
	unsubscribe := report.Registry.Subscribe(counter)
	report.Functions = make([]Function, len(m.Funcs))
	err = planFuncs(ctx, p, m.Funcs, report, cfg.Spectre, cfg.Workers())
	unsubscribe()
	if err != nil {
		return nil, err
	}

	report.Summary.Functions = len(report.Functions)
	for i := range report.Functions {
		f := &report.Functions[i]
		f.TrapSites = counter.count(f.Index)
		for _, e := range f.Entries {
			report.Summary.add(e.Plan)
		}
	}

	Logger().Info("module analyzed",
		zap.String("module", name),
		zap.Int("functions", report.Summary.Functions),
		zap.Int("accesses", report.Summary.Accesses),
		zap.Int("elided", report.Summary.Elided),
		zap.Int("trap_sites", report.Registry.Len()))
	return report, nil
}

// planFuncs fills report.Functions using up to workers goroutines.
func planFuncs(ctx context.Context, p *planner.Planner, funcs []wasm.Func, report *Report, spectre bool, workers int) error {
	if workers > len(funcs) {
		workers = len(funcs)
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	jobs := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn, err := planFunc(p, &funcs[i], report.Memories, spectre)
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					continue
				}
				report.Functions[i] = fn
			}
		}()
	}

feed:
	for i := range funcs {
		if err := ctx.Err(); err != nil {
			errOnce.Do(func() { firstErr = err })
			break
		}
		select {
		case <-ctx.Done():
			errOnce.Do(func() { firstErr = ctx.Err() })
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return firstErr
}

func planFunc(p *planner.Planner, f *wasm.Func, memories []*heap.Descriptor, spectre bool) (Function, error) {
	accesses, err := f.Accesses()
	if err != nil {
		if _, ok := err.(*errors.Error); ok {
			return Function{}, err
		}
		return Function{}, errors.DecodeFailed("function "+strconv.FormatUint(uint64(f.Index), 10), err)
	}

	fn := Function{
		Index:   f.Index,
		Locals:  f.Locals,
		Stack:   p.PlanStackCheck(FrameSize(f.Locals), heap.DefaultLayout.StackLimit(), trap.Origin{Func: f.Index}),
		Entries: make([]Entry, 0, len(accesses)),
	}
	for _, a := range accesses {
		if int(a.Memory) >= len(memories) {
			path := []string{"func", strconv.FormatUint(uint64(f.Index), 10)}
			return Function{}, errors.OutOfBounds(errors.PhaseDecode, path, uint64(a.Memory), uint64(len(memories)))
		}
		origin := trap.Origin{Func: f.Index, Offset: a.PC}
		dir := planner.Load
		if a.Store {
			dir = planner.Store
		}
		plan := p.Plan(memories[a.Memory], planner.Request{
			Origin:    origin,
			Offset:    a.Offset,
			Width:     planner.Width(a.Width),
			Direction: dir,
		}, spectre)

		fn.Entries = append(fn.Entries, Entry{
			Access: Access{
				Name:   a.Name,
				Offset: a.Offset,
				Memory: a.Memory,
				Width:  a.Width,
				Store:  a.Store,
				Atomic: a.Atomic,
			},
			Origin: origin,
			Plan:   plan,
		})
	}
	return fn, nil
}
