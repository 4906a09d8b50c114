package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/liteforge/assetcore/asset"
	"github.com/liteforge/assetcore/serialize"
)

// Data is the Data Controller (C4): a per-domain registry of TypeRecords,
// prototype inheritance, dirty-set tracking, and the Load publication
// protocol.
type Data struct {
	source   *Source
	cacheCtl *Cache
	reflect  serialize.Registry
	stream   serialize.Stream
	metrics  Metrics

	domainsMu sync.RWMutex
	domains   map[string]*asset.Registry

	dirtyMu sync.Mutex
	dirty   map[string]map[string]*asset.TypeRecord
}

// NewData constructs a Data Controller wired to the given Source Controller
// (C3), Cache Controller (C2), and the serialisation collaborators.
func NewData(source *Source, cacheCtl *Cache, reflect serialize.Registry, stream serialize.Stream) *Data {
	return &Data{
		source:   source,
		cacheCtl: cacheCtl,
		reflect:  reflect,
		stream:   stream,
		metrics:  NoopMetrics(),
		domains:  make(map[string]*asset.Registry),
		dirty:    make(map[string]map[string]*asset.TypeRecord),
	}
}

// SetMetrics installs m as the controller's metrics sink, replacing the
// default no-op.
func (d *Data) SetMetrics(m Metrics) {
	if m == nil {
		m = NoopMetrics()
	}
	d.metrics = m
}

func (d *Data) domainRegistry(domain string) *asset.Registry {
	d.domainsMu.RLock()
	reg, ok := d.domains[domain]
	d.domainsMu.RUnlock()
	if ok {
		return reg
	}

	d.domainsMu.Lock()
	defer d.domainsMu.Unlock()
	if reg, ok = d.domains[domain]; ok {
		return reg
	}
	reg = asset.NewRegistry()
	d.domains[domain] = reg
	return reg
}

// Registry returns the per-domain record registry, creating it on first
// use.
func (d *Data) Registry(domain string) *asset.Registry { return d.domainRegistry(domain) }

// Find resolves path to its TypeRecord, if any is registered.
func (d *Data) Find(path asset.Path) (*asset.TypeRecord, bool) {
	return d.domainRegistry(path.Domain()).Find(path)
}

// Create reserves a new record at path and writes obj as its source file.
// Fails with AlreadyExists if path already resolves, or InvalidParent if
// parent is Deleted. obj may be nil, in which case the initial source
// content is built the same way CreateEditable/Instantiate would: a fresh
// object for concreteType with parent's published fields overlaid.
func (d *Data) Create(path asset.Path, concreteType string, obj asset.Object, parent *asset.TypeRecord) (*asset.TypeRecord, error) {
	reg := d.domainRegistry(path.Domain())
	if _, exists := reg.Find(path); exists {
		return nil, asset.NewOpError(asset.AlreadyExists, nil)
	}
	if parent != nil {
		parent.RLock()
		deleted := parent.Phase() == asset.PhaseDeleted
		parent.RUnlock()
		if deleted {
			return nil, asset.NewOpError(asset.InvalidParent, nil)
		}
	}

	rec := asset.NewTypeRecord(path, concreteType, parent)

	if obj == nil {
		inst, err := d.Instantiate(rec)
		if err != nil {
			return nil, err
		}
		obj = inst
	}

	data, err := d.stream.Encode(obj, func(asset.Path, bool) {})
	if err != nil {
		return nil, asset.NewOpError(asset.DeserialisationError, err)
	}
	if err := d.source.Write(path, data); err != nil {
		return nil, err
	}

	rec.Lock()
	rec.SetPhase(asset.Committed)
	rec.Unlock()

	reg.Insert(rec)
	d.markDirty(rec)
	return rec, nil
}

// Import probes source for path; if present, reserves a record and loads
// its prototype from source bytes, marking it Committed.
func (d *Data) Import(ctx context.Context, path asset.Path, concreteType string) (*asset.TypeRecord, error) {
	reg := d.domainRegistry(path.Domain())
	if _, exists := reg.Find(path); exists {
		return nil, asset.NewOpError(asset.AlreadyExists, nil)
	}
	if !d.source.Exists(path) {
		return nil, asset.NewOpError(asset.NotFound, nil)
	}

	rec := asset.NewTypeRecord(path, concreteType, nil)
	rec.Lock()
	rec.SetPhase(asset.Committed)
	rec.Unlock()
	reg.Insert(rec)

	if err := d.PublishLoad(ctx, rec, asset.Source); err != nil {
		return rec, err
	}
	return rec, nil
}

// Delete refuses while strong in-edges exist, otherwise marks the record
// Deleted and dirty so a follow-up SaveDomain reclaims its source file and
// cache object.
func (d *Data) Delete(rec *asset.TypeRecord) error {
	rec.RLock()
	blocked := rec.StrongInDegree() > 0
	rec.RUnlock()
	if blocked {
		return asset.NewOpError(asset.InvalidParent, fmt.Errorf("controller: record has live strong in-edges"))
	}

	rec.Lock()
	rec.SetPhase(asset.PhaseDeleted)
	rec.TransitionLoadState(asset.Deleted)
	rec.Unlock()
	d.markDirty(rec)
	return nil
}

// readBytes returns the bytes to deserialise for rec, preferring cache
// unless flags requests Source or the record has no cache index yet.
func (d *Data) readBytes(rec *asset.TypeRecord, flags asset.LoadFlags) ([]byte, error) {
	rec.RLock()
	idx := rec.CacheIndex()
	rec.RUnlock()

	if !flags.Has(asset.Source) && !idx.IsEmpty() {
		data, err := d.cacheCtl.ReadObject(rec.Path().Domain(), idx)
		if err == nil {
			return data, nil
		}
		var opErr *asset.OpError
		if !errors.As(err, &opErr) || !asset.IsCorruption(opErr.Code) {
			return nil, err
		}
		// Stale/corrupt cache entry: fall through to source, matching
		// "cache preferred, source fallback" rather than surfacing the
		// cache error directly.
	}
	d.metrics.IncCacheMiss(rec.Path().Domain())
	return d.source.Read(rec.Path())
}

// PublishLoad runs the Load publication protocol: read bytes, deserialise
// into a fresh prototype, walk dependencies, and swap the Handle's
// prototype pointer only once decoding succeeds completely.
func (d *Data) PublishLoad(ctx context.Context, rec *asset.TypeRecord, flags asset.LoadFlags) error {
	rec.Lock()
	started := rec.TransitionLoadState(asset.Loading)
	rec.Unlock()
	if !started {
		return nil
	}

	domain := rec.Path().Domain()
	data, err := d.readBytes(rec, flags)
	if err != nil {
		rec.Lock()
		rec.TransitionLoadState(asset.Failed)
		rec.Unlock()
		d.metrics.IncLoad(domain, false)
		return err
	}

	desc, ok := d.reflect.Lookup(rec.ConcreteType())
	if !ok {
		rec.Lock()
		rec.TransitionLoadState(asset.Failed)
		rec.Unlock()
		d.metrics.IncLoad(domain, false)
		return asset.NewOpError(asset.WrongConcreteType, nil)
	}

	proto := desc.New()
	var strongDeps, weakDeps []asset.Path
	err = d.stream.Decode(data, proto, func(depPath asset.Path, strong bool) {
		if strong {
			strongDeps = append(strongDeps, depPath)
		} else {
			weakDeps = append(weakDeps, depPath)
		}
	})
	if err != nil {
		rec.Lock()
		rec.TransitionLoadState(asset.Failed)
		rec.Unlock()
		d.metrics.IncLoad(domain, false)
		return asset.NewOpError(asset.DeserialisationError, err)
	}

	rec.Lock()
	for _, p := range strongDeps {
		if dep, ok := d.domainRegistry(p.Domain()).Find(p); ok {
			rec.AddStrongEdge(dep)
		}
	}
	for _, p := range weakDeps {
		if dep, ok := d.domainRegistry(p.Domain()).Find(p); ok {
			rec.AddWeakEdge(dep)
		}
	}
	rec.Handle().Publish(&proto)
	rec.TransitionLoadState(asset.Loaded)
	rec.Unlock()
	d.metrics.IncLoad(domain, true)
	return nil
}

// UpdateCache rewrites an already-loaded record's cache bytes from its
// current prototype. Every call allocates a fresh cache object and then
// deletes the previous one, so the old slot is never left orphaned.
func (d *Data) UpdateCache(rec *asset.TypeRecord) error {
	rec.RLock()
	proto := rec.Handle().Prototype()
	prevIdx := rec.CacheIndex()
	rec.RUnlock()
	if proto == nil {
		return asset.NewOpError(asset.NotFound, fmt.Errorf("controller: no loaded prototype to persist"))
	}

	data, err := d.stream.Encode(*proto, func(asset.Path, bool) {})
	if err != nil {
		return asset.NewOpError(asset.DeserialisationError, err)
	}

	domain := rec.Path().Domain()
	idx, err := d.cacheCtl.Allocate(domain, uint32(len(data)))
	if err != nil {
		return err
	}
	d.cacheCtl.WriteObject(domain, idx, data)
	if !prevIdx.IsEmpty() && prevIdx.ObjectID != idx.ObjectID {
		if err := d.cacheCtl.DeleteObject(domain, prevIdx.ObjectID); err != nil {
			return err
		}
	}

	rec.Lock()
	rec.SetCacheIndex(idx)
	rec.Unlock()
	d.markDirty(rec)
	return nil
}

// Instantiate builds a fresh object for rec's concrete type, cloning its
// parent chain root-first and overlaying rec's own ancestors' fields, the
// prototype-inheritance behaviour CreateEditable/CreateInstance build on.
func (d *Data) Instantiate(rec *asset.TypeRecord) (asset.Object, error) {
	desc, ok := d.reflect.Lookup(rec.ConcreteType())
	if !ok {
		return nil, asset.NewOpError(asset.WrongConcreteType, nil)
	}
	obj := desc.New()

	var chain []*asset.TypeRecord
	for p := rec.Parent(); p != nil; p = p.Parent() {
		chain = append([]*asset.TypeRecord{p}, chain...)
	}
	for _, ancestor := range chain {
		if proto := ancestor.Handle().Prototype(); proto != nil {
			desc.CopyFields(obj, *proto)
		}
	}
	return obj, nil
}

func (d *Data) markDirty(rec *asset.TypeRecord) {
	d.dirtyMu.Lock()
	defer d.dirtyMu.Unlock()
	domain := rec.Path().Domain()
	if d.dirty[domain] == nil {
		d.dirty[domain] = make(map[string]*asset.TypeRecord)
	}
	d.dirty[domain][rec.Path().String()] = rec
}

// DirtySet returns a snapshot of domain's dirty records.
func (d *Data) DirtySet(domain string) []*asset.TypeRecord {
	d.dirtyMu.Lock()
	defer d.dirtyMu.Unlock()
	recs := d.dirty[domain]
	out := make([]*asset.TypeRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, r)
	}
	return out
}

// SaveDomain flushes domain's dirty-set through the Source Controller
// (C3): a record marked Deleted has its source file and cache object
// reclaimed, everything else with a currently-loaded prototype has that
// prototype re-serialised to its source file, picking up edits made
// directly through the Handle since the last save. It does not clear the
// dirty-set or flush the Cache Controller's coalesced write buffer (deleting
// a cache object only drops that object's pending write) — flushing is
// SaveDomainCache's job, run alongside this one by the façade.
func (d *Data) SaveDomain(domain string) error {
	for _, rec := range d.DirtySet(domain) {
		rec.RLock()
		phase := rec.Phase()
		idx := rec.CacheIndex()
		proto := rec.Handle().Prototype()
		rec.RUnlock()

		if phase == asset.PhaseDeleted {
			if err := d.source.Delete(rec.Path()); err != nil {
				return err
			}
			if !idx.IsEmpty() {
				if err := d.cacheCtl.DeleteObject(domain, idx.ObjectID); err != nil {
					return err
				}
			}
			continue
		}

		if proto == nil {
			continue
		}
		data, err := d.stream.Encode(*proto, func(asset.Path, bool) {})
		if err != nil {
			return asset.NewOpError(asset.DeserialisationError, err)
		}
		if err := d.source.Write(rec.Path(), data); err != nil {
			return err
		}
	}
	return nil
}

// ClearDirty empties domain's dirty-set, done once SaveDomain has
// committed every pending record.
func (d *Data) ClearDirty(domain string) {
	d.dirtyMu.Lock()
	defer d.dirtyMu.Unlock()
	delete(d.dirty, domain)
}
