package asset

import "testing"

func newTestRecord(name string) *TypeRecord {
	return NewTypeRecord(NewPath("engine//test/"+name+".obj"), "TestType", nil)
}

func TestEdgesAreSymmetric(t *testing.T) {
	a := newTestRecord("a")
	b := newTestRecord("b")

	a.AddStrongEdge(b)
	if a.StrongOutDegree() != 1 {
		t.Fatalf("a strong out degree = %d, want 1", a.StrongOutDegree())
	}
	if b.StrongInDegree() != 1 {
		t.Fatalf("b strong in degree = %d, want 1", b.StrongInDegree())
	}

	a.RemoveEdge(b)
	if a.StrongOutDegree() != 0 || b.StrongInDegree() != 0 {
		t.Fatal("RemoveEdge should clear both directions")
	}
}

func TestWeakEdgeDoesNotBlockDelete(t *testing.T) {
	a := newTestRecord("a")
	b := newTestRecord("b")
	a.AddWeakEdge(b)

	if b.StrongInDegree() != 0 {
		t.Fatal("weak edge must not register as a strong in-edge")
	}
	if b.WeakInDegree() != 1 {
		t.Fatalf("weak in degree = %d, want 1", b.WeakInDegree())
	}
}

func TestHasStrongPathDetectsCycle(t *testing.T) {
	a := newTestRecord("a")
	b := newTestRecord("b")
	c := newTestRecord("c")

	a.AddStrongEdge(b)
	b.AddStrongEdge(c)

	if !HasStrongPath(a, c) {
		t.Fatal("expected a -> b -> c to be reachable")
	}
	if HasStrongPath(c, a) {
		t.Fatal("c must not reach a")
	}

	// Introducing c -> a would create a cycle; callers check this before
	// calling AddStrongEdge.
	if !HasStrongPath(a, a) {
		t.Fatal("a record trivially has a strong path to itself")
	}
}
