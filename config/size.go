package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-heapcheck/internal/checked"
)

// Size is a byte count.
type Size uint64

var sizeUnits = []struct {
	suffix string
	shift  uint
}{
	{"TiB", 40},
	{"GiB", 30},
	{"MiB", 20},
	{"KiB", 10},
}

// ParseSize parses "65536", "0x10000" or "64KiB".
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	shift := uint(0)
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			shift = u.shift
			break
		}
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	v, ok := checked.Mul(n, 1<<shift)
	if !ok {
		return 0, fmt.Errorf("size %q overflows 64 bits", s)
	}
	return Size(v), nil
}

// String formats s with the largest binary unit that divides it.
func (s Size) String() string {
	if s == 0 {
		return "0"
	}
	for _, u := range sizeUnits {
		if uint64(s)%(1<<u.shift) == 0 {
			return fmt.Sprintf("%d%s", uint64(s)>>u.shift, u.suffix)
		}
	}
	return strconv.FormatUint(uint64(s), 10)
}

// UnmarshalYAML accepts integers and size strings.
func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", node.Line)
	}
	v, err := ParseSize(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = v
	return nil
}

// MarshalYAML writes s in its String form.
func (s Size) MarshalYAML() (any, error) {
	return s.String(), nil
}
