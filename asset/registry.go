package asset

import "github.com/liteforge/assetcore/internal/rwpriority"

// Registry is a per-domain index of TypeRecords, keyed both by path (the
// primary lookup used by acquire/resolve) and by concrete-type name (used
// by the GetTypes(domain)/GetTypes(concreteType) enumeration surface). It
// is the Go replacement for the original
// engine's reflection-based type registry: instead of walking a C++ RTTI
// table, callers look up a stable string type-id registered once at
// startup via serialize.Registry, and this Registry maps live records to
// that id.
//
// Registry itself does not own record lifetime — the Data Controller's
// DomainMap does — it only maintains the secondary by-type index so
// GetTypes doesn't need a full scan.
type Registry struct {
	lock rwpriority.Lock

	byPath    map[string]*TypeRecord
	byConcreteType map[string][]*TypeRecord
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byPath:         make(map[string]*TypeRecord),
		byConcreteType: make(map[string][]*TypeRecord),
	}
}

// Insert adds r to the index. Replaces any existing record at the same
// path (the caller is responsible for ensuring that doesn't silently drop
// an in-use record; the Data Controller checks AlreadyExists before ever
// calling Insert for a Create).
func (g *Registry) Insert(r *TypeRecord) {
	g.lock.Lock()
	defer g.lock.Unlock()
	key := r.Path().String()
	g.byPath[key] = r
	g.byConcreteType[r.ConcreteType()] = append(g.byConcreteType[r.ConcreteType()], r)
}

// Remove drops r from the index. Called once a record becomes physically
// removable, never merely on logical Delete.
func (g *Registry) Remove(r *TypeRecord) {
	g.lock.Lock()
	defer g.lock.Unlock()
	key := r.Path().String()
	if g.byPath[key] == r {
		delete(g.byPath, key)
	}
	list := g.byConcreteType[r.ConcreteType()]
	for i, cand := range list {
		if cand == r {
			g.byConcreteType[r.ConcreteType()] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// Find returns the record at path, if any.
func (g *Registry) Find(path Path) (*TypeRecord, bool) {
	g.lock.RLock()
	defer g.lock.RUnlock()
	r, ok := g.byPath[path.String()]
	return r, ok
}

// ByConcreteType returns a snapshot slice of every record of the given
// concrete-type name, backing GetTypes(concreteType).
func (g *Registry) ByConcreteType(name string) []*TypeRecord {
	g.lock.RLock()
	defer g.lock.RUnlock()
	src := g.byConcreteType[name]
	out := make([]*TypeRecord, len(src))
	copy(out, src)
	return out
}

// All returns a snapshot slice of every record in the registry, backing
// GetTypes(domain) once filtered by the caller on Path().Domain().
func (g *Registry) All() []*TypeRecord {
	g.lock.RLock()
	defer g.lock.RUnlock()
	out := make([]*TypeRecord, 0, len(g.byPath))
	for _, r := range g.byPath {
		out = append(out, r)
	}
	return out
}

// Len returns the number of records currently indexed.
func (g *Registry) Len() int {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return len(g.byPath)
}
