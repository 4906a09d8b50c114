package asset

import "testing"

func TestNullHandle(t *testing.T) {
	n := Null()
	if !n.IsNull() {
		t.Fatal("Null() should report IsNull")
	}
	if n.Record() != nil {
		t.Fatal("Null() should have no owning record")
	}
	if n.Prototype() != nil {
		t.Fatal("Null() should have no prototype")
	}
	// Acquire/Release on the null handle must be safe no-ops.
	n.AcquireStrong()
	n.AcquireWeak()
	if n.ReleaseStrong() || n.ReleaseWeak() {
		t.Fatal("release on null handle should never report reachedZero")
	}
}

func TestHandleStrongWeakCounters(t *testing.T) {
	r := NewTypeRecord(NewPath("engine//test/a.obj"), "TestType", nil)
	h := r.Handle()
	if h.IsNull() {
		t.Fatal("record-owned handle must not be null")
	}

	h.AcquireStrong()
	h.AcquireStrong()
	if r.ExternalStrongRefs() != 2 {
		t.Fatalf("strong refs = %d, want 2", r.ExternalStrongRefs())
	}
	if h.ReleaseStrong() {
		t.Fatal("release should not report zero with one strong ref remaining")
	}
	if !h.ReleaseStrong() {
		t.Fatal("release of last strong ref should report zero")
	}

	h.AcquireWeak()
	if r.ExternalWeakRefs() != 1 {
		t.Fatalf("weak refs = %d, want 1", r.ExternalWeakRefs())
	}
	if !h.ReleaseWeak() {
		t.Fatal("release of last weak ref should report zero")
	}
}

func TestHandlePrototypePublishAndClear(t *testing.T) {
	r := NewTypeRecord(NewPath("engine//test/a.obj"), "TestType", nil)
	h := r.Handle()
	if h.Prototype() != nil {
		t.Fatal("fresh record must have no prototype")
	}

	var obj Object = "payload"
	h.Publish(&obj)
	if got := h.Prototype(); got == nil || *got != "payload" {
		t.Fatalf("Prototype() = %v, want payload", got)
	}

	h.Clear()
	if h.Prototype() != nil {
		t.Fatal("clear() should reset prototype to nil")
	}
}
