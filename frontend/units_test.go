package frontend

import (
	"context"
	"strings"
	"testing"

	w "github.com/wippyai/wasm-heapcheck/internal/wasm/wasmtest"
)

func TestAnalyzeUnits(t *testing.T) {
	units := []Unit{
		{Name: "a.wasm", Wasm: loadStoreModule(w.Limits{Min: 1})},
		{Name: "b.wasm", Wasm: loadStoreModule(w.Limits{Min: 1, Max: w.Pages(2)})},
	}
	reports, err := AnalyzeUnits(context.Background(), units, testConfig(t, "static_memory_maximum_size=0"))
	if err != nil {
		t.Fatalf("AnalyzeUnits: %v", err)
	}
	if len(reports) != 2 || reports[0].Name != "a.wasm" || reports[1].Name != "b.wasm" {
		t.Fatalf("reports = %v", reports)
	}
	if reports[0].Registry == reports[1].Registry {
		t.Error("units must not share a registry")
	}
	for _, r := range reports {
		if r.Registry.Len() != 3 {
			t.Errorf("%s: %d trap sites, want 3", r.Name, r.Registry.Len())
		}
	}
}

func TestAnalyzeUnits_Error(t *testing.T) {
	units := []Unit{
		{Name: "good.wasm", Wasm: loadStoreModule(w.Limits{Min: 1})},
		{Name: "broken.wasm", Wasm: []byte{0x00, 0x61, 0x73}},
	}
	_, err := AnalyzeUnits(context.Background(), units, testConfig(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "broken.wasm: ") {
		t.Errorf("error %q should name the unit", err)
	}
}
