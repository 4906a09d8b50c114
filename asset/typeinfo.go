package asset

import (
	"sync/atomic"
	"time"
	"weak"

	"github.com/liteforge/assetcore/internal/rwpriority"
)

// Object is the prototype/runtime representation of an asset body. The core
// never interprets its contents — concrete shader/mesh/texture types are
// external collaborators; the core only stores, swaps and
// reference-counts pointers to values of this type.
type Object any

// CacheIndex identifies an object inside a CacheBlock: BlobID selects the
// block generation, ObjectID is the slot within it, UID is a freshness tag
// checked on every read.
type CacheIndex struct {
	BlobID   uint32
	ObjectID uint32
	UID      uint32
}

// IsEmpty reports whether the index refers to no cache entry yet (a Reserved
// record has no cache bytes).
func (c CacheIndex) IsEmpty() bool { return c.BlobID == 0 && c.ObjectID == 0 && c.UID == 0 }

// RecordPhase is the source/cache commit phase of a TypeRecord, independent
// of LoadState (which tracks the in-memory prototype).
type RecordPhase uint8

const (
	// Reserved: created by Create/Import op start; no cache or source bytes
	// yet.
	Reserved RecordPhase = iota
	// Committed: source file exists; cache index is either empty or
	// present.
	Committed
	// Dirty: in-memory changes not yet flushed to source/cache.
	Dirty
	// PhaseDeleted: logically removed, physical teardown pending refcount
	// reaching 0.
	PhaseDeleted
)

// TypeRecord is the manager-owned runtime metadata record for one asset
// (AssetTypeInfo in the original engine).
type TypeRecord struct {
	// Immutable after creation; readable without the lock.
	path         Path
	concreteType string // stable type-id, see Registry

	// Lock guards every field below this point. Readers that only need the
	// immutable fields above never take it.
	lock rwpriority.Lock

	parent    *TypeRecord
	handle    *Handle
	instances []weak.Pointer[Object]

	cacheIndex CacheIndex
	phase      RecordPhase
	loadState  LoadState

	modifyHash uint64
	modifyDate time.Time

	// Dependency edges (C8), guarded by lock.
	strongOut map[*TypeRecord]struct{}
	weakOut   map[*TypeRecord]struct{}
	strongIn  map[*TypeRecord]struct{}
	weakIn    map[*TypeRecord]struct{}

	// External handle-protocol counters (C6). Atomic: read without the
	// lock on the hot acquire/release path.
	extStrongRefs atomic.Uint32
	extWeakRefs   atomic.Uint32

	// refCount is a generic pin counter: anything holding a raw *TypeRecord
	// across an await point (an in-flight op, a FindType() result) bumps it
	// so the record cannot be physically removed mid-use, matching the
	// "no in-flight op targets it" clause of the destruction invariant.
	// It is distinct from the handle-protocol strong/weak counts.
	refCount atomic.Int32
}

// NewTypeRecord constructs a Reserved record for path with the given
// concrete-type id. The record owns its single Handle.
func NewTypeRecord(path Path, concreteType string, parent *TypeRecord) *TypeRecord {
	r := &TypeRecord{
		path:         path,
		concreteType: concreteType,
		parent:       parent,
		phase:        Reserved,
		loadState:    Unloaded,
		strongOut:    make(map[*TypeRecord]struct{}),
		weakOut:      make(map[*TypeRecord]struct{}),
		strongIn:     make(map[*TypeRecord]struct{}),
		weakIn:       make(map[*TypeRecord]struct{}),
	}
	r.handle = newHandle(r)
	return r
}

// Path returns the immutable asset path. Safe without the lock.
func (r *TypeRecord) Path() Path { return r.path }

// ConcreteType returns the stable type-id of the produced object. Safe
// without the lock.
func (r *TypeRecord) ConcreteType() string { return r.concreteType }

// Parent returns the non-owning parent reference used for prototype
// inheritance. It takes the record's read lock itself, since SetParent
// rewires parent under the write lock; callers must not already hold the
// record's lock.
func (r *TypeRecord) Parent() *TypeRecord {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.parent
}

// SetParent rewires the prototype-inheritance parent, after verifying the
// change does not introduce a cycle: a parent-set mutation that would
// create one is rejected. Returns ErrCycleDetected
// if newParent's ancestor chain already contains r.
func (r *TypeRecord) SetParent(newParent *TypeRecord) error {
	if newParent != nil {
		for p := newParent; p != nil; p = p.parentUnsafe() {
			if p == r {
				return ErrCycleDetected
			}
		}
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.parent = newParent
	return nil
}

// parentUnsafe reads parent without locking; used only while walking a
// chain that the caller has already established cannot reach r concurrently
// (construction-time / single-writer cycle check). Concurrent SetParent
// calls on chain members are serialised by the Data Controller's registry
// lock in practice; this is a best-effort check valid at clone time, not a
// full linearisable guarantee.
func (r *TypeRecord) parentUnsafe() *TypeRecord { return r.parent }

// Handle returns the single Handle owned by this record.
func (r *TypeRecord) Handle() *Handle { return r.handle }

// LoadState returns the current load state under the read lock.
func (r *TypeRecord) LoadState() LoadState {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.loadState
}

// TransitionLoadState attempts to move the record to next, returning false
// if the transition is not permitted by the state machine. Caller
// must already hold the write lock (Load publication protocol step 1).
func (r *TypeRecord) TransitionLoadState(next LoadState) bool {
	if !r.loadState.CanTransition(next) {
		return false
	}
	r.loadState = next
	return true
}

// Lock exposes the record's write lock for the Load publication protocol and
// other mutating controllers.
func (r *TypeRecord) Lock() { r.lock.Lock() }

// Unlock releases the write lock.
func (r *TypeRecord) Unlock() { r.lock.Unlock() }

// RLock exposes the record's read lock for readers of volatile fields.
func (r *TypeRecord) RLock() { r.lock.RLock() }

// RUnlock releases the read lock.
func (r *TypeRecord) RUnlock() { r.lock.RUnlock() }

// CacheIndex returns the record's cache coordinates. Caller must hold at
// least the read lock.
func (r *TypeRecord) CacheIndex() CacheIndex { return r.cacheIndex }

// SetCacheIndex updates the record's cache coordinates. Caller must hold the
// write lock.
func (r *TypeRecord) SetCacheIndex(idx CacheIndex) { r.cacheIndex = idx }

// Phase returns the source/cache commit phase. Caller must hold at least the
// read lock.
func (r *TypeRecord) Phase() RecordPhase { return r.phase }

// SetPhase updates the commit phase. Caller must hold the write lock.
func (r *TypeRecord) SetPhase(p RecordPhase) { r.phase = p }

// ModifyMeta returns the change-detection metadata. Caller must hold at
// least the read lock.
func (r *TypeRecord) ModifyMeta() (hash uint64, date time.Time) {
	return r.modifyHash, r.modifyDate
}

// SetModifyMeta updates the change-detection metadata. Caller must hold the
// write lock.
func (r *TypeRecord) SetModifyMeta(hash uint64, date time.Time) {
	r.modifyHash = hash
	r.modifyDate = date
}

// AddInstance registers a weak reference to a live object instance copied
// from the prototype, for hot-reload notification. Caller must hold the
// write lock.
func (r *TypeRecord) AddInstance(obj *Object) {
	r.instances = append(r.instances, weak.Make(obj))
}

// LiveInstances returns every instance weak-reference that has not yet been
// garbage collected. Caller must hold at least the read lock.
func (r *TypeRecord) LiveInstances() []*Object {
	live := make([]*Object, 0, len(r.instances))
	kept := r.instances[:0]
	for _, w := range r.instances {
		if p := w.Value(); p != nil {
			live = append(live, p)
			kept = append(kept, w)
		}
	}
	r.instances = kept
	return live
}

// Pin increments the generic pin counter, keeping the record
// from being treated as physically removable while the caller holds a raw
// pointer to it (an in-flight op, a FindType result, ...).
func (r *TypeRecord) Pin() { r.refCount.Add(1) }

// Unpin decrements the pin counter.
func (r *TypeRecord) Unpin() { r.refCount.Add(-1) }

// PinCount returns the current pin counter value.
func (r *TypeRecord) PinCount() int32 { return r.refCount.Load() }

// ExternalStrongRefs returns the client-handle strong reference count (C6).
func (r *TypeRecord) ExternalStrongRefs() uint32 { return r.extStrongRefs.Load() }

// ExternalWeakRefs returns the client-handle weak reference count (C6).
func (r *TypeRecord) ExternalWeakRefs() uint32 { return r.extWeakRefs.Load() }

// IsRemovable reports whether every liveness condition for physical teardown
// holds: no external strong/weak handle refs, nothing pinning the record,
// and it has actually been marked Deleted.
func (r *TypeRecord) IsRemovable() bool {
	r.lock.RLock()
	phase := r.phase
	r.lock.RUnlock()
	return phase == PhaseDeleted &&
		r.extStrongRefs.Load() == 0 &&
		r.extWeakRefs.Load() == 0 &&
		r.refCount.Load() == 0
}
