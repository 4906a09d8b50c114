package asset

import "testing"

func TestNewTypeRecordDefaults(t *testing.T) {
	r := NewTypeRecord(NewPath("engine//test/a.mesh"), "Mesh", nil)
	if r.LoadState() != Unloaded {
		t.Fatalf("LoadState() = %s, want UNLOADED", r.LoadState())
	}
	if r.Phase() != Reserved {
		t.Fatalf("Phase() = %d, want Reserved", r.Phase())
	}
	if r.Handle().IsNull() {
		t.Fatal("a constructed record must own a non-null handle")
	}
	if r.Handle().Record() != r {
		t.Fatal("handle must point back at its owning record")
	}
}

func TestSetParentRejectsCycle(t *testing.T) {
	a := NewTypeRecord(NewPath("engine//test/a.mesh"), "Mesh", nil)
	b := NewTypeRecord(NewPath("engine//test/b.mesh"), "Mesh", a)

	if err := a.SetParent(b); err != ErrCycleDetected {
		t.Fatalf("SetParent(b) on a whose child is b = %v, want ErrCycleDetected", err)
	}
	if a.Parent() != nil {
		t.Fatal("a rejected cycle must leave parent unchanged")
	}
}

func TestTransitionLoadStateRespectsTable(t *testing.T) {
	r := NewTypeRecord(NewPath("engine//test/a.mesh"), "Mesh", nil)
	r.Lock()
	if !r.TransitionLoadState(Loading) {
		t.Fatal("UNLOADED -> LOADING must be permitted")
	}
	if r.TransitionLoadState(Unloaded) {
		t.Fatal("LOADING -> UNLOADED must not be permitted")
	}
	if !r.TransitionLoadState(Loaded) {
		t.Fatal("LOADING -> LOADED must be permitted")
	}
	r.Unlock()
}

func TestIsRemovableRequiresZeroRefsAndDeletedPhase(t *testing.T) {
	r := NewTypeRecord(NewPath("engine//test/a.mesh"), "Mesh", nil)
	if r.IsRemovable() {
		t.Fatal("a fresh Reserved record must not be removable")
	}

	r.Pin()
	r.Lock()
	r.SetPhase(PhaseDeleted)
	r.Unlock()
	if r.IsRemovable() {
		t.Fatal("a pinned record must not be removable")
	}

	r.Unpin()
	if !r.IsRemovable() {
		t.Fatal("an unpinned, Deleted, ref-free record must be removable")
	}

	r.Handle().AcquireStrong()
	if r.IsRemovable() {
		t.Fatal("a record with a live strong handle ref must not be removable")
	}
}
