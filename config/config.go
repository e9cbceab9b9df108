package config

import (
	"bytes"
	stderrors "errors"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-heapcheck/errors"
	"github.com/wippyai/wasm-heapcheck/heap"
	"github.com/wippyai/wasm-heapcheck/isa"
	"github.com/wippyai/wasm-heapcheck/planner"
)

// Setting names accepted by Set and used as YAML keys.
const (
	SettingStaticMaximumSize = "static_memory_maximum_size"
	SettingStaticGuardSize   = "static_memory_guard_size"
	SettingDynamicGuardSize  = "dynamic_memory_guard_size"
	SettingSpectre           = "enable_heap_access_spectre_mitigation"
	SettingTarget            = "target"
	SettingRedirectTarget    = "redirect_target"
	SettingHostAddressBits   = "host_address_bits"
	SettingValidate          = "validate"
	SettingParallel          = "parallel"
)

// Config holds planning settings.
type Config struct {
	// RedirectTarget is where masked out-of-range accesses land. Nil means
	// address zero.
	RedirectTarget *Size `yaml:"redirect_target,omitempty"`
	Target         string `yaml:"target"`

	// StaticMaximumSize is the reservation for memories whose maximum fits.
	// Zero makes every growable memory dynamic.
	StaticMaximumSize Size `yaml:"static_memory_maximum_size"`
	StaticGuardSize   Size `yaml:"static_memory_guard_size"`
	DynamicGuardSize  Size `yaml:"dynamic_memory_guard_size"`

	// HostAddressBits overrides the target's virtual address width.
	HostAddressBits uint `yaml:"host_address_bits,omitempty"`
	// Parallel bounds the goroutines planning one module. Zero means GOMAXPROCS.
	Parallel int `yaml:"parallel"`

	Spectre bool `yaml:"enable_heap_access_spectre_mitigation"`
	// ValidateModules runs modules through wazero's validator before planning.
	ValidateModules bool `yaml:"validate"`
}

// Default returns the settings for the host architecture.
func Default() *Config {
	d := heap.DefaultTunables()
	target := runtime.GOARCH
	if _, err := isa.Lookup(target); err != nil {
		target = isa.None{}.Name()
	}
	return &Config{
		Target:            target,
		StaticMaximumSize: Size(d.StaticMaximumSize),
		StaticGuardSize:   Size(d.StaticGuardBytes),
		DynamicGuardSize:  Size(d.DynamicGuardBytes),
		ValidateModules:   true,
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindNotFound).
			Path(path).
			Cause(err).
			Detail("read config").
			Build()
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Set applies one key=value setting.
func (c *Config) Set(setting string) error {
	key, value, ok := strings.Cut(setting, "=")
	if !ok {
		return errors.InvalidSetting(setting, "", "expected key=value")
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case SettingStaticMaximumSize:
		return setSize(key, value, &c.StaticMaximumSize)
	case SettingStaticGuardSize:
		return setSize(key, value, &c.StaticGuardSize)
	case SettingDynamicGuardSize:
		return setSize(key, value, &c.DynamicGuardSize)
	case SettingRedirectTarget:
		if value == "" || value == "none" {
			c.RedirectTarget = nil
			return nil
		}
		var s Size
		if err := setSize(key, value, &s); err != nil {
			return err
		}
		c.RedirectTarget = &s
	case SettingSpectre:
		return setBool(key, value, &c.Spectre)
	case SettingValidate:
		return setBool(key, value, &c.ValidateModules)
	case SettingTarget:
		t, err := isa.Lookup(value)
		if err != nil {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Setting(key).Value(value).Cause(err).Build()
		}
		c.Target = t.Name()
	case SettingHostAddressBits:
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return errors.InvalidSetting(key, value, "expected a bit count")
		}
		c.HostAddressBits = uint(n)
	case SettingParallel:
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.InvalidSetting(key, value, "expected an integer")
		}
		c.Parallel = n
	default:
		return errors.UnknownSetting(key)
	}
	return nil
}

func setSize(key, value string, dst *Size) error {
	s, err := ParseSize(value)
	if err != nil {
		return errors.InvalidSetting(key, value, err.Error())
	}
	*dst = s
	return nil
}

func setBool(key, value string, dst *bool) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return errors.InvalidSetting(key, value, "expected true or false")
	}
	*dst = b
	return nil
}

// Validate rejects settings no planner can honor.
func (c *Config) Validate() error {
	target, err := isa.Lookup(c.Target)
	if err != nil {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Setting(SettingTarget).Value(c.Target).Cause(err).Build()
	}
	if c.HostAddressBits != 0 && (c.HostAddressBits < 32 || c.HostAddressBits > 64) {
		return errors.InvalidSetting(SettingHostAddressBits, c.HostAddressBits, "must be between 32 and 64")
	}
	if c.StaticMaximumSize%heap.PageSize != 0 {
		return errors.InvalidSetting(SettingStaticMaximumSize, c.StaticMaximumSize, "must be a multiple of the 64KiB page size")
	}
	if c.Parallel < 0 {
		return errors.InvalidSetting(SettingParallel, c.Parallel, "must not be negative")
	}
	if c.RedirectTarget != nil {
		bits := c.addressBits(target)
		if bits < 64 && uint64(*c.RedirectTarget)>>bits != 0 {
			return errors.InvalidSetting(SettingRedirectTarget, *c.RedirectTarget, "outside the host address space")
		}
	}
	return nil
}

// ISA resolves the configured target.
func (c *Config) ISA() (isa.Target, error) {
	return isa.Lookup(c.Target)
}

// AddressBits returns the host address width used to validate descriptors.
func (c *Config) AddressBits() uint {
	target, err := c.ISA()
	if err != nil {
		target = isa.None{}
	}
	return c.addressBits(target)
}

func (c *Config) addressBits(target isa.Target) uint {
	if c.HostAddressBits != 0 {
		return c.HostAddressBits
	}
	return target.AddressBits()
}

// Tunables maps the settings to memory representation choices.
func (c *Config) Tunables() heap.Tunables {
	return heap.Tunables{
		StaticMaximumSize: uint64(c.StaticMaximumSize),
		StaticGuardBytes:  uint64(c.StaticGuardSize),
		DynamicGuardBytes: uint64(c.DynamicGuardSize),
		AddressBits:       c.AddressBits(),
		Layout:            heap.DefaultLayout,
	}
}

// PlannerOptions returns the planner options the settings imply.
func (c *Config) PlannerOptions() ([]planner.Option, error) {
	target, err := c.ISA()
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Setting(SettingTarget).Value(c.Target).Cause(err).Build()
	}
	opts := []planner.Option{planner.WithTarget(target)}
	if c.RedirectTarget != nil {
		opts = append(opts, planner.WithRedirect(uint64(*c.RedirectTarget)))
	}
	return opts, nil
}

// Workers returns the number of goroutines to plan one module with.
func (c *Config) Workers() int {
	if c.Parallel > 0 {
		return c.Parallel
	}
	return runtime.GOMAXPROCS(0)
}
