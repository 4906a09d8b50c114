package asset

import "sync/atomic"

// Handle is the single, shared handle owned by a TypeRecord (C6). Every
// client that resolves the same path receives the same *Handle; acquiring
// and releasing it adjusts the owning record's external strong/weak
// reference counts rather than allocating per-client state.
//
// The prototype pointer transitions Unset -> Set exactly once per load
// generation and is never mutated in place: a reload builds a new prototype
// object and swaps the pointer atomically, so readers that already loaded
// the old pointer keep observing a consistent value.
type Handle struct {
	typ       *TypeRecord
	prototype atomic.Pointer[Object]
}

func newHandle(typ *TypeRecord) *Handle {
	return &Handle{typ: typ}
}

// nullHandle is the process-wide sentinel returned for paths that resolve to
// no record. It is never equal to a real Handle and AcquireStrong/Weak on it
// are no-ops.
var nullHandle = &Handle{}

// Null returns the process-wide null handle.
func Null() *Handle { return nullHandle }

// IsNull reports whether h is the null handle (nil or the sentinel).
func (h *Handle) IsNull() bool { return h == nil || h == nullHandle }

// Record returns the owning TypeRecord, or nil for the null handle.
func (h *Handle) Record() *TypeRecord {
	if h.IsNull() {
		return nil
	}
	return h.typ
}

// Prototype returns the currently published prototype object, or nil if the
// record has not yet completed a Load: set after a Load publish, reset to
// nil on explicit unload.
func (h *Handle) Prototype() *Object {
	if h.IsNull() {
		return nil
	}
	return h.prototype.Load()
}

// Publish atomically installs a new prototype pointer. Called by the Data
// Controller's Load publication protocol under the record's write lock,
// swapping Handle.prototype to the newly decoded object.
func (h *Handle) Publish(obj *Object) {
	h.prototype.Store(obj)
}

// Clear resets the prototype to unset, e.g. on explicit unload or the
// LOADED/FAILED -> UNLOADED transition.
func (h *Handle) Clear() {
	h.prototype.Store(nil)
}

// AcquireStrong increments the owning record's external strong reference
// count. If the record is currently Unloaded, the caller (Asset Manager) is
// expected to enqueue a Load op; AcquireStrong itself only adjusts the
// counter.
func (h *Handle) AcquireStrong() {
	if h.IsNull() {
		return
	}
	h.typ.extStrongRefs.Add(1)
}

// ReleaseStrong decrements the external strong reference count. It reports
// whether the count reached zero, which is the caller's cue that the
// prototype is now eligible to be dropped from memory (subject to the
// record also having zero weak refs).
func (h *Handle) ReleaseStrong() (reachedZero bool) {
	if h.IsNull() {
		return false
	}
	return h.typ.extStrongRefs.Add(^uint32(0)) == 0
}

// AcquireWeak increments the external weak reference count. Unlike
// AcquireStrong it never triggers a Load.
func (h *Handle) AcquireWeak() {
	if h.IsNull() {
		return
	}
	h.typ.extWeakRefs.Add(1)
}

// ReleaseWeak decrements the external weak reference count, reporting
// whether it reached zero.
func (h *Handle) ReleaseWeak() (reachedZero bool) {
	if h.IsNull() {
		return false
	}
	return h.typ.extWeakRefs.Add(^uint32(0)) == 0
}
