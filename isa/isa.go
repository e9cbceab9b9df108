// Package isa answers the target-specific questions the planner must not decide
// itself: whether a static offset fits a load/store addressing-mode immediate, and
// how much virtual address space the host can map.
package isa

import (
	"math"
	"sort"

	"github.com/wippyai/wasm-heapcheck/errors"
)

// Target is the addressing-mode capability of one architecture.
type Target interface {
	// Name is the architecture name used in configuration ("amd64", "arm64", ...).
	Name() string
	// FoldsOffset reports whether offset can be encoded as the displacement of a
	// width-byte load or store, so no separate add is needed.
	FoldsOffset(offset uint64, width uint8) bool
	// AddressBits is the usable virtual address width of the host.
	AddressBits() uint
}

// AMD64 encodes a signed 32-bit displacement in every ModRM memory operand.
type AMD64 struct{}

func (AMD64) Name() string { return "amd64" }

func (AMD64) FoldsOffset(offset uint64, _ uint8) bool {
	return offset <= math.MaxInt32
}

func (AMD64) AddressBits() uint { return 48 }

// ARM64 has LDR/STR with an unsigned 12-bit offset scaled by the access width,
// and LDUR/STUR with an unscaled signed 9-bit offset.
type ARM64 struct{}

func (ARM64) Name() string { return "arm64" }

func (ARM64) FoldsOffset(offset uint64, width uint8) bool {
	if offset <= 255 {
		return true
	}
	if width == 0 {
		return false
	}
	w := uint64(width)
	return offset%w == 0 && offset/w < 4096
}

func (ARM64) AddressBits() uint { return 48 }

// RISCV64 loads and stores take a signed 12-bit immediate.
type RISCV64 struct{}

func (RISCV64) Name() string { return "riscv64" }

func (RISCV64) FoldsOffset(offset uint64, _ uint8) bool {
	return offset <= 2047
}

func (RISCV64) AddressBits() uint { return 48 }

// None never folds; every offset is added explicitly. Useful for targets
// without displacement addressing and for tests.
type None struct{}

func (None) Name() string { return "none" }

func (None) FoldsOffset(uint64, uint8) bool { return false }

func (None) AddressBits() uint { return 64 }

var targets = map[string]Target{
	"amd64":   AMD64{},
	"x86_64":  AMD64{},
	"arm64":   ARM64{},
	"aarch64": ARM64{},
	"riscv64": RISCV64{},
	"none":    None{},
}

// Lookup returns the target registered under name.
func Lookup(name string) (Target, error) {
	t, ok := targets[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseConfig, "target", name)
	}
	return t, nil
}

// Names returns the canonical target names, sorted.
func Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range targets {
		if !seen[t.Name()] {
			seen[t.Name()] = true
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)
	return names
}
