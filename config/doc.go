// Package config holds the settings that shape bounds-check planning: how
// memories are reserved, how large their guard regions are, which target's
// addressing modes fold offsets and whether spectre hardening is on.
//
// A Config is loaded from YAML and can be adjusted with key=value settings:
//
//	cfg, err := config.Load("heapcheck.yaml")
//	if err != nil { ... }
//	if err := cfg.Set("static_memory_guard_size=64KiB"); err != nil { ... }
//
// Sizes accept a plain byte count, a hex value or a binary suffix
// (KiB, MiB, GiB, TiB).
package config
