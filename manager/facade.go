package manager

// facade.go holds the Asset Manager's supplemented read-only/query surface:
// type enumeration, a lightweight source probe distinct from Import, and
// explicit cache maintenance hooks — all thin wrappers grounded on
// original_source/Code/Runtime/Asset/AssetMgr.h.

import (
	"github.com/liteforge/assetcore/asset"
	"github.com/liteforge/assetcore/controller"
)

// TypesInDomain returns every TypeRecord currently registered in domain,
// the Go form of AssetMgr.h's GetTypes(domain).
func (m *Manager) TypesInDomain(domain string) []*asset.TypeRecord {
	return m.data.Registry(domain).All()
}

// TypesOf returns every TypeRecord across domain whose concrete type is
// typeName, the Go form of AssetMgr.h's GetTypes(concreteType).
func (m *Manager) TypesOf(domain, typeName string) []*asset.TypeRecord {
	return m.data.Registry(domain).ByConcreteType(typeName)
}

// QuerySourceInfo probes path's source file without importing it, distinct
// from Import which commits a record. Grounded on AssetMgr.h's
// QuerySourceInfo.
func (m *Manager) QuerySourceInfo(path asset.Path) (controller.QueryResult, bool) {
	return m.source.Query(path)
}

// CacheControllerUpdate forces an immediate flush of domain's pending cache
// writes, outside the periodic Update() tick.
func (m *Manager) CacheControllerUpdate(domain string) error {
	return m.cache.Flush(domain)
}

// CacheControllerValidate runs domain's cache block integrity check outside
// the periodic Update() tick.
func (m *Manager) CacheControllerValidate(domain string) error {
	return m.cache.ValidateDomain(domain)
}

// LookupDebugObject resolves a cache uid to the object id it was last
// allocated under, via the optional Badger blob directory (WithBlobDir).
// Intended for offline inspection tooling, not runtime use.
func (m *Manager) LookupDebugObject(domain string, uid uint32) (objectID uint32, ok bool) {
	return m.cache.LookupDebug(domain, uid)
}

// Instantiate builds a fresh, untyped object for rec by cloning its parent
// chain. CreateEditable/CreateInstance wrap this with a type
// assertion for callers who know the concrete Go type at compile time.
func (m *Manager) Instantiate(rec *asset.TypeRecord) (asset.Object, error) {
	return m.data.Instantiate(rec)
}

// CreateEditable builds a fresh, independently-owned instance of rec's
// concrete type by cloning its parent chain, the typed Go form of
// original_source AssetMgr.h's CreateEditable<T>(). A caller that wants the
// shared, reference-counted prototype instead should use rec.Handle() and
// acquire/release through the handle protocol.
func CreateEditable[T any](m *Manager, rec *asset.TypeRecord) (T, error) {
	var zero T
	obj, err := m.Instantiate(rec)
	if err != nil {
		return zero, err
	}
	out, ok := obj.(T)
	if !ok {
		return zero, asset.NewOpError(asset.WrongConcreteType, nil)
	}
	return out, nil
}

// CreateInstance is CreateEditable's counterpart for freshly Created (rather
// than already-registered) records: it reserves rec via Create and
// immediately returns a typed editable instance for it, the typed Go form of
// AssetMgr.h's CreateInstance<T>().
func CreateInstance[T any](m *Manager, path asset.Path, concreteType string, parent *asset.TypeRecord) (T, *asset.TypeRecord, error) {
	var zero T
	rec, err := m.Create(path, concreteType, nil, parent)
	if err != nil {
		return zero, nil, err
	}
	obj, err := CreateEditable[T](m, rec)
	if err != nil {
		return zero, rec, err
	}
	return obj, rec, nil
}
