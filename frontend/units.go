package frontend

import (
	"context"
	"fmt"
	"sync"

	"github.com/wippyai/wasm-heapcheck/config"
)

// Unit is one module to analyze.
type Unit struct {
	Name string
	Wasm []byte
}

// AnalyzeUnits analyzes several modules concurrently, each with its own trap
// registry. Reports come back in unit order. The first failure is returned
// with the unit name attached.
func AnalyzeUnits(ctx context.Context, units []Unit, cfg *config.Config) ([]*Report, error) {
	reports := make([]*Report, len(units))
	errs := make([]error, len(units))

	var wg sync.WaitGroup
	for i := range units {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = analyze(ctx, units[i].Name, units[i].Wasm, cfg)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%s: %w", units[i].Name, err)
		}
	}
	return reports, nil
}
