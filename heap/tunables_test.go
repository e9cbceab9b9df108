package heap

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-heapcheck/errors"
)

func pages(n uint64) *uint64 { return &n }

func TestFromMemory(t *testing.T) {
	defaults := DefaultTunables()
	noStatic := defaults
	noStatic.StaticMaximumSize = 0

	tests := []struct {
		name         string
		mt           MemoryType
		tunables     Tunables
		wantKind     BoundKind
		wantBytes    uint64
		wantGuard    uint64
		wantWidth    IndexWidth
		wantReserved bool
		wantReload   bool
	}{
		{
			name:      "fixed size memory is static at its length",
			mt:        MemoryType{Min: 1, Max: pages(1)},
			tunables:  defaults,
			wantKind:  BoundStatic,
			wantBytes: 65536,
			wantGuard: 2 << 30,
			wantWidth: Index32,
		},
		{
			name:         "growable 32-bit memory gets the 4GiB reservation",
			mt:           MemoryType{Min: 1},
			tunables:     defaults,
			wantKind:     BoundStatic,
			wantBytes:    4 << 30,
			wantGuard:    2 << 30,
			wantWidth:    Index32,
			wantReserved: true,
		},
		{
			name:       "static maximum zero makes growable memory dynamic",
			mt:         MemoryType{Min: 1, Max: pages(10)},
			tunables:   noStatic,
			wantKind:   BoundDynamic,
			wantGuard:  64 << 10,
			wantWidth:  Index32,
			wantReload: true,
		},
		{
			name:       "memory64 without maximum is dynamic",
			mt:         MemoryType{Min: 1, Memory64: true},
			tunables:   defaults,
			wantKind:   BoundDynamic,
			wantGuard:  64 << 10,
			wantWidth:  Index64,
			wantReload: true,
		},
		{
			name:      "shared dynamic memory does not move",
			mt:        MemoryType{Min: 1, Max: pages(2), Shared: true},
			tunables:  noStatic,
			wantKind:  BoundDynamic,
			wantGuard: 64 << 10,
			wantWidth: Index32,
		},
		{
			name:         "memory64 with small maximum fits reservation",
			mt:           MemoryType{Min: 0, Max: pages(16), Memory64: true},
			tunables:     defaults,
			wantKind:     BoundStatic,
			wantBytes:    4 << 30,
			wantGuard:    2 << 30,
			wantWidth:    Index64,
			wantReserved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := FromMemory(0, tt.mt, tt.tunables)
			if err != nil {
				t.Fatalf("FromMemory: %v", err)
			}
			b := d.Bound()
			if b.Kind != tt.wantKind {
				t.Fatalf("bound kind = %v, want %v", b.Kind, tt.wantKind)
			}
			if tt.wantKind == BoundStatic && b.Bytes != tt.wantBytes {
				t.Errorf("bound = %#x, want %#x", b.Bytes, tt.wantBytes)
			}
			if tt.wantKind == BoundDynamic && b.Location != tt.tunables.Layout.Length(0) {
				t.Errorf("bound location = %v", b.Location)
			}
			if d.GuardBytes() != tt.wantGuard {
				t.Errorf("guard = %#x, want %#x", d.GuardBytes(), tt.wantGuard)
			}
			if d.IndexWidth() != tt.wantWidth {
				t.Errorf("width = %v, want %v", d.IndexWidth(), tt.wantWidth)
			}
			if d.Reserved() != tt.wantReserved {
				t.Errorf("reserved = %v, want %v", d.Reserved(), tt.wantReserved)
			}
			if d.Base().Reload != tt.wantReload {
				t.Errorf("base reload = %v, want %v", d.Base().Reload, tt.wantReload)
			}
		})
	}
}

func TestFromMemory_Errors(t *testing.T) {
	if _, err := FromMemory(0, MemoryType{Min: 1 << 17}, DefaultTunables()); err == nil {
		t.Error("32-bit memory over 65536 pages should be rejected")
	}

	tiny := DefaultTunables()
	tiny.AddressBits = 32
	if _, err := FromMemory(0, MemoryType{Min: 1}, tiny); err == nil {
		t.Error("reservation plus guard over a 32-bit host should be rejected")
	}
}

func TestFromMemory_PageLimitReportsOffendingField(t *testing.T) {
	tests := []struct {
		name  string
		mt    MemoryType
		field string
		value uint64
	}{
		{"min", MemoryType{Min: 1<<16 + 1}, "min", 1<<16 + 1},
		{"max", MemoryType{Min: 1, Max: pages(1<<16 + 5)}, "max", 1<<16 + 5},
		{"memory64 max", MemoryType{Min: 1, Max: pages(1<<48 + 1), Memory64: true}, "max", 1<<48 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMemory(2, tt.mt, DefaultTunables())
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("err = %v", err)
			}
			if e.Kind != errors.KindOutOfBounds || e.Value != tt.value {
				t.Errorf("Kind = %v Value = %v, want out_of_bounds %d", e.Kind, e.Value, tt.value)
			}
			if len(e.Path) != 3 || e.Path[1] != "2" || e.Path[2] != tt.field {
				t.Errorf("Path = %v", e.Path)
			}
		})
	}
}

func TestFromMemory_LayoutPerIndex(t *testing.T) {
	tun := DefaultTunables()
	tun.StaticMaximumSize = 0
	d, err := FromMemory(3, MemoryType{Min: 1}, tun)
	if err != nil {
		t.Fatalf("FromMemory: %v", err)
	}
	if d.Memory() != 3 {
		t.Errorf("Memory = %d", d.Memory())
	}
	if d.Base().Offset != DefaultLayout.Base(3).Offset {
		t.Errorf("base = %v", d.Base())
	}
}
