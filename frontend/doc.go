// Package frontend drives the planner over real modules. It decodes a binary
// module, derives one heap descriptor per memory from the configured
// tunables, and plans every load, store and function prologue.
//
//	report, err := frontend.Analyze(ctx, wasmBytes, config.Default())
//	if err != nil { ... }
//	for _, e := range report.Entries() {
//		fmt.Println(e.Origin, e.Access.Name, e.Plan)
//	}
//
// Each module gets its own trap registry. Functions of one module are planned
// on up to Config.Workers goroutines sharing that registry; trap site numbers
// are unique per module but follow scheduling order when more than one worker
// runs.
package frontend
