package asset

import "testing"

func TestRegistryInsertFindRemove(t *testing.T) {
	g := NewRegistry()
	r := NewTypeRecord(NewPath("engine//test/a.mesh"), "Mesh", nil)
	g.Insert(r)

	got, ok := g.Find(r.Path())
	if !ok || got != r {
		t.Fatal("Find did not return the inserted record")
	}
	if g.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", g.Len())
	}

	g.Remove(r)
	if _, ok := g.Find(r.Path()); ok {
		t.Fatal("record should be gone after Remove")
	}
	if g.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", g.Len())
	}
}

func TestRegistryByConcreteType(t *testing.T) {
	g := NewRegistry()
	a := NewTypeRecord(NewPath("engine//test/a.mesh"), "Mesh", nil)
	b := NewTypeRecord(NewPath("engine//test/b.mesh"), "Mesh", nil)
	c := NewTypeRecord(NewPath("engine//test/c.tex"), "Texture", nil)
	g.Insert(a)
	g.Insert(b)
	g.Insert(c)

	meshes := g.ByConcreteType("Mesh")
	if len(meshes) != 2 {
		t.Fatalf("len(meshes) = %d, want 2", len(meshes))
	}

	g.Remove(a)
	meshes = g.ByConcreteType("Mesh")
	if len(meshes) != 1 || meshes[0] != b {
		t.Fatalf("expected only b to remain, got %v", meshes)
	}

	if len(g.All()) != 2 {
		t.Fatalf("All() len = %d, want 2", len(g.All()))
	}
}
