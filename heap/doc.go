// Package heap describes the compile-time facts about one WebAssembly linear
// memory that bounds-check planning depends on.
//
// A Descriptor records the guest index width, how the memory's bound is known
// (a static byte length fixed at compile time, or a dynamic length loaded from a
// runtime location), how many guard bytes are mapped past the bound, and where
// the heap base comes from:
//
//	d, err := heap.New(heap.Spec{
//		IndexWidth: heap.Index32,
//		Bound:      heap.Static(4 << 30),
//		GuardBytes: 2 << 30,
//		Base:       heap.Register("r14"),
//	})
//
// Construction validates that bound plus guard neither overflows 64 bits nor
// exceeds the host address space. That sum is computed once and cached, so a
// Descriptor is immutable after New returns and may be shared read-only by any
// number of goroutines.
//
// # Tunables
//
// FromMemory maps a decoded memory type onto a Descriptor the way an engine's
// memory tunables do:
//
//	fixed size (min == max)            -> Static(min bytes)
//	max fits static_memory_maximum_size -> Static(reservation), Reserved
//	otherwise                          -> Dynamic(bound loaded from VM context)
//
// Setting StaticMaximumSize to zero disables reservations so every growable
// memory becomes dynamic.
package heap
