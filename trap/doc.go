// Package trap records the symbolic fault sites that bounds-check plans refer to.
//
// A Registry belongs to exactly one compilation unit. Plans reference sites by
// SiteID; the runtime's fault handler later maps a faulting program location
// back to its registered Reason through the same registry:
//
//	reg := trap.NewRegistry()
//	id := reg.Register(trap.HeapOutOfBounds, trap.Origin{Func: 3, Offset: 0x41})
//
//	site, msg, ok := reg.Diagnose(id)
//	// site.Reason == trap.HeapOutOfBounds, msg == "out of bounds memory access"
//
// Registration is append-only and deduplicated by (reason, origin): planning the
// same instruction twice yields the same SiteID. SiteID 0 is reserved and means
// "no trap site". Register is safe for concurrent use, so the functions of one
// unit may be planned on several goroutines; separate units should own separate
// registries and need no coordination.
package trap
