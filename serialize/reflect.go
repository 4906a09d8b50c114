package serialize

import "github.com/liteforge/assetcore/asset"

// TypeDescriptor is the reflection collaborator's per-type handle: enough
// for the core to construct a fresh prototype and to overlay a child's
// fields onto a cloned parent during CreateEditable, without the
// core ever needing compiled knowledge of the concrete Go type.
type TypeDescriptor interface {
	// New allocates a zero-value instance of the concrete type.
	New() asset.Object
	// CopyFields overlays src's fields onto dst, used by prototype
	// inheritance to apply a child's overrides on top of a cloned parent.
	CopyFields(dst, src asset.Object)
	// Name returns the stable type-id string, e.g. "Mesh" or "Texture".
	Name() string
}

// Registry is the reflection collaborator: a process-wide table mapping
// stable type-id strings to TypeDescriptors, registered once at startup by
// the embedding application (the Go replacement for the original engine's
// RTTI-based type registry).
type Registry interface {
	Register(name string, ctor func() asset.Object, copy func(dst, src asset.Object)) TypeDescriptor
	Lookup(name string) (TypeDescriptor, bool)
}

// descriptor is the concrete TypeDescriptor returned by NewRegistry's
// Register.
type descriptor struct {
	name string
	ctor func() asset.Object
	copy func(dst, src asset.Object)
}

func (d *descriptor) New() asset.Object                   { return d.ctor() }
func (d *descriptor) CopyFields(dst, src asset.Object)     { d.copy(dst, src) }
func (d *descriptor) Name() string                         { return d.name }

// registry is the default in-process Registry implementation, sufficient
// for tests and benchmarks; production embedders may supply their
// own Registry wired to a code-generated reflection table instead.
type registry struct {
	entries map[string]*descriptor
}

// NewRegistry constructs an empty in-process Registry.
func NewRegistry() Registry {
	return &registry{entries: make(map[string]*descriptor)}
}

func (r *registry) Register(name string, ctor func() asset.Object, copy func(dst, src asset.Object)) TypeDescriptor {
	d := &descriptor{name: name, ctor: ctor, copy: copy}
	r.entries[name] = d
	return d
}

func (r *registry) Lookup(name string) (TypeDescriptor, bool) {
	d, ok := r.entries[name]
	return d, ok
}
