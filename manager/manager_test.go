package manager

import (
	"context"
	"testing"
	"time"

	"github.com/liteforge/assetcore/asset"
	"github.com/liteforge/assetcore/serialize"
)

type widget struct {
	Name string
}

type widgetStream struct{}

func (widgetStream) Encode(obj asset.Object, walk serialize.DependencyWalker) ([]byte, error) {
	return []byte(obj.(*widget).Name), nil
}

func (widgetStream) Decode(data []byte, into asset.Object, walk serialize.DependencyWalker) error {
	into.(*widget).Name = string(data)
	return nil
}

func newTestManager(t *testing.T, domains ...string) *Manager {
	t.Helper()
	reg := serialize.NewRegistry()
	reg.Register("Widget",
		func() asset.Object { return &widget{} },
		func(dst, src asset.Object) { dst.(*widget).Name = src.(*widget).Name },
	)

	m, err := New(
		WithSourceRoot(t.TempDir()),
		WithCacheRoot(t.TempDir()),
		WithDomains(domains...),
		WithReflect(reg),
		WithStream(widgetStream{}),
		WithUpdateInterval(10*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestNewRequiresSourceCacheReflectStream(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected error constructing Manager with no options")
	}
	if _, err := New(WithSourceRoot(t.TempDir())); err == nil {
		t.Fatal("expected error with source root but no cache root/reflect/stream")
	}
}

func TestManagerCreateAndFind(t *testing.T) {
	m := newTestManager(t, "engine")
	path := asset.NewPath("engine//widgets/a.widget")

	rec, err := m.Create(path, "Widget", nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	found, ok := m.Find(path)
	if !ok || found != rec {
		t.Fatal("Find should return the just-created record")
	}
}

func TestManagerSubmitLoadFromSource(t *testing.T) {
	m := newTestManager(t, "engine")
	path := asset.NewPath("engine//widgets/a.widget")

	var obj asset.Object = &widget{Name: "initial"}
	rec, err := m.Create(path, "Widget", obj, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Simulate an external edit to the source file after Create.
	if err := m.source.Write(path, []byte("hello")); err != nil {
		t.Fatalf("source.Write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.ops.Run(ctx)

	promise := m.SubmitLoad(rec, asset.Source, time.Second)
	code, err := promise.Wait(context.Background())
	if err != nil || code != asset.Ok {
		t.Fatalf("Wait: code=%v err=%v", code, err)
	}

	proto := rec.Handle().Prototype()
	if proto == nil || (*proto).(*widget).Name != "hello" {
		t.Fatalf("unexpected prototype: %v", proto)
	}
}

func TestManagerSubmitUpdateCacheThenFlush(t *testing.T) {
	m := newTestManager(t, "engine")
	path := asset.NewPath("engine//widgets/a.widget")

	rec, err := m.Create(path, "Widget", nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var obj asset.Object = &widget{Name: "persisted"}
	rec.Lock()
	rec.Handle().Publish(&obj)
	rec.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.ops.Run(ctx)

	promise := m.SubmitUpdateCache(rec, time.Second)
	if code, err := promise.Wait(context.Background()); err != nil || code != asset.Ok {
		t.Fatalf("Wait: code=%v err=%v", code, err)
	}

	if err := m.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	rec.RLock()
	idx := rec.CacheIndex()
	rec.RUnlock()
	got, err := m.cache.ReadObject("engine", idx)
	if err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	if string(got) != "persisted" {
		t.Fatalf("ReadObject = %q, want persisted", got)
	}
}

func TestCreateEditableAndCreateInstanceGenerics(t *testing.T) {
	m := newTestManager(t, "engine")

	parentPath := asset.NewPath("engine//widgets/parent.widget")
	parent, err := m.Create(parentPath, "Widget", nil, nil)
	if err != nil {
		t.Fatalf("Create parent: %v", err)
	}
	var parentObj asset.Object = &widget{Name: "from-parent"}
	parent.Handle().Publish(&parentObj)

	childPath := asset.NewPath("engine//widgets/child.widget")
	w, rec, err := CreateInstance[*widget](m, childPath, "Widget", parent)
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	if w.Name != "from-parent" {
		t.Fatalf("w.Name = %q, want from-parent (inherited)", w.Name)
	}

	w2, err := CreateEditable[*widget](m, rec)
	if err != nil {
		t.Fatalf("CreateEditable: %v", err)
	}
	if w2.Name != "from-parent" {
		t.Fatalf("w2.Name = %q, want from-parent", w2.Name)
	}
}

func TestGlobalSingleton(t *testing.T) {
	if Global() != nil {
		t.Fatal("Global() should start nil")
	}
	m := newTestManager(t, "engine")
	SetGlobal(m)
	t.Cleanup(func() { SetGlobal(nil) })
	if Global() != m {
		t.Fatal("Global() should return the installed Manager")
	}
}

func TestTypesInDomainAndTypesOf(t *testing.T) {
	m := newTestManager(t, "engine")
	a, _ := m.Create(asset.NewPath("engine//widgets/a.widget"), "Widget", nil, nil)
	b, _ := m.Create(asset.NewPath("engine//widgets/b.widget"), "Widget", nil, nil)

	all := m.TypesInDomain("engine")
	if len(all) != 2 {
		t.Fatalf("TypesInDomain returned %d records, want 2", len(all))
	}
	byType := m.TypesOf("engine", "Widget")
	if len(byType) != 2 {
		t.Fatalf("TypesOf returned %d records, want 2", len(byType))
	}
	_ = a
	_ = b
}

func TestQuerySourceInfo(t *testing.T) {
	m := newTestManager(t, "engine")
	path := asset.NewPath("engine//widgets/a.widget")
	if _, ok := m.QuerySourceInfo(path); ok {
		t.Fatal("expected ok=false before the source file exists")
	}
	if err := m.source.Write(path, []byte("x")); err != nil {
		t.Fatalf("source.Write: %v", err)
	}
	res, ok := m.QuerySourceInfo(path)
	if !ok || res.ConcreteTypeHint != "widget" {
		t.Fatalf("QuerySourceInfo = %+v, ok=%v", res, ok)
	}
}
