// Package errors provides structured error types for the heapcheck module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the offending setting or location path, the offending value,
// a human-readable detail and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConfig, errors.KindOverflow).
//		Path("memory", "0").
//		Setting("static_memory_guard_size").
//		Value(guard).
//		Detail("bound %d plus guard %d overflows 64 bits", bound, guard).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Overflow(errors.PhaseConfig, path, "bound+guard", bound)
//	err := errors.UnsupportedOpcode(pc, 0xfd, 0x5c)
//
// Configuration errors are the only hard failures of the planning core: a heap
// descriptor that fails validation is rejected before any access is planned
// against it. All errors implement the standard error interface and support
// errors.Is/As.
package errors
