package checked

import (
	"math"
	"testing"
)

func TestAdd(t *testing.T) {
	tests := []struct {
		name   string
		a, b   uint64
		want   uint64
		wantOK bool
	}{
		{"zero", 0, 0, 0, true},
		{"small", 0xffff0000, 4, 0xffff0004, true},
		{"max exact", math.MaxUint64 - 16, 16, math.MaxUint64, true},
		{"one past max", math.MaxUint64 - 15, 16, 0, false},
		{"max plus one", math.MaxUint64, 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Add(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Fatalf("Add(%#x, %#x) ok = %v, want %v", tt.a, tt.b, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Add(%#x, %#x) = %#x, want %#x", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSub(t *testing.T) {
	if d, ok := Sub(65536, 4); !ok || d != 65532 {
		t.Errorf("Sub(65536, 4) = %d, %v", d, ok)
	}
	if _, ok := Sub(0, 0xffff0004); ok {
		t.Error("Sub(0, 0xffff0004) should underflow")
	}
	if d, ok := Sub(7, 7); !ok || d != 0 {
		t.Errorf("Sub(7, 7) = %d, %v", d, ok)
	}
}

func TestMul(t *testing.T) {
	if p, ok := Mul(65536, 65536); !ok || p != 1<<32 {
		t.Errorf("Mul(65536, 65536) = %d, %v", p, ok)
	}
	if _, ok := Mul(1<<48, 1<<16); ok {
		t.Error("Mul(2^48, 2^16) should overflow")
	}
}

func TestAddWidth(t *testing.T) {
	tests := []struct {
		name   string
		a, b   uint64
		width  uint
		wantOK bool
	}{
		{"fits 32", 0xfffffff0, 0xf, 32, true},
		{"overflows 32", 0xfffffff0, 0x10, 32, false},
		{"fits 48", 1<<47 - 1, 1 << 47, 48, true},
		{"overflows 48", 1 << 47, 1 << 47, 48, false},
		{"fits 64", math.MaxUint64 - 1, 1, 64, true},
		{"overflows 64", math.MaxUint64, 1, 64, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := AddWidth(tt.a, tt.b, tt.width); ok != tt.wantOK {
				t.Errorf("AddWidth(%#x, %#x, %d) ok = %v, want %v", tt.a, tt.b, tt.width, ok, tt.wantOK)
			}
		})
	}
}

func TestMaxAndSpan(t *testing.T) {
	if Max(32) != math.MaxUint32 {
		t.Errorf("Max(32) = %#x", Max(32))
	}
	if Max(64) != math.MaxUint64 {
		t.Errorf("Max(64) = %#x", Max(64))
	}
	if Span(48) != 1<<48 {
		t.Errorf("Span(48) = %#x", Span(48))
	}
	if Span(64) != math.MaxUint64 {
		t.Errorf("Span(64) = %#x", Span(64))
	}
}
