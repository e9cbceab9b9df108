package heapcheck

import (
	"context"
	"os"

	"github.com/wippyai/wasm-heapcheck/config"
	"github.com/wippyai/wasm-heapcheck/errors"
	"github.com/wippyai/wasm-heapcheck/frontend"
)

// Analyze plans every memory access in a binary module. settings are applied
// over config.Default() as key=value pairs.
func Analyze(ctx context.Context, wasm []byte, settings ...string) (*frontend.Report, error) {
	cfg := config.Default()
	for _, s := range settings {
		if err := cfg.Set(s); err != nil {
			return nil, err
		}
	}
	return frontend.Analyze(ctx, wasm, cfg)
}

// AnalyzeFile reads and analyzes the module at path.
func AnalyzeFile(ctx context.Context, path string, settings ...string) (*frontend.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
			Path(path).
			Cause(err).
			Detail("read module").
			Build()
	}
	report, err := Analyze(ctx, data, settings...)
	if err != nil {
		return nil, err
	}
	report.Name = path
	return report, nil
}
