package controller

import (
	"os"
	"testing"

	"github.com/liteforge/assetcore/asset"
)

func TestSourceWriteReadRoundTrip(t *testing.T) {
	s := NewSource(t.TempDir())
	p := asset.NewPath("engine//models/hero/mesh.obj")

	if s.Exists(p) {
		t.Fatal("fresh source root should report no existing file")
	}
	if err := s.Write(p, []byte("vertices")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Exists(p) {
		t.Fatal("Exists should report true after Write")
	}

	got, err := s.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "vertices" {
		t.Fatalf("Read = %q, want vertices", got)
	}
}

func TestSourceReadMissingReturnsNotFound(t *testing.T) {
	s := NewSource(t.TempDir())
	p := asset.NewPath("engine//missing.obj")

	_, err := s.Read(p)
	if err == nil {
		t.Fatal("expected error reading a missing source file")
	}
	opErr, ok := err.(*asset.OpError)
	if !ok || opErr.Code != asset.NotFound {
		t.Fatalf("err = %v, want *asset.OpError{Code: NotFound}", err)
	}
}

func TestSourceDeleteRemovesFile(t *testing.T) {
	s := NewSource(t.TempDir())
	p := asset.NewPath("engine//models/hero/mesh.obj")
	if err := s.Write(p, []byte("data")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Delete(p); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists(p) {
		t.Fatal("Exists should report false after Delete")
	}
	// Deleting an already-absent file must not error (idempotent).
	if err := s.Delete(p); err != nil {
		t.Fatalf("Delete of already-missing file: %v", err)
	}
}

func TestSourceModTimeTracksWrites(t *testing.T) {
	s := NewSource(t.TempDir())
	p := asset.NewPath("engine//models/hero/mesh.obj")
	if err := s.Write(p, []byte("v1")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	first, err := s.ModTime(p)
	if err != nil {
		t.Fatalf("ModTime: %v", err)
	}
	if first.IsZero() {
		t.Fatal("ModTime should not be zero for an existing file")
	}

	if _, err := s.ModTime(asset.NewPath("engine//nope.obj")); err == nil {
		t.Fatal("expected error for ModTime of a missing file")
	}
}

func TestSourceEnumerateListsAllFilesSorted(t *testing.T) {
	root := t.TempDir()
	s := NewSource(root)

	paths := []asset.Path{
		asset.NewPath("engine//b/z.obj"),
		asset.NewPath("engine//a/a.obj"),
		asset.NewPath("engine//a/b.obj"),
	}
	for _, p := range paths {
		if err := s.Write(p, []byte("x")); err != nil {
			t.Fatalf("Write(%s): %v", p, err)
		}
	}

	got, err := s.Enumerate("engine")
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(got) != len(paths) {
		t.Fatalf("Enumerate returned %d paths, want %d", len(got), len(paths))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].String() > got[i].String() {
			t.Fatalf("Enumerate not sorted: %s > %s", got[i-1], got[i])
		}
	}
}

func TestSourceEnumerateOnMissingDomainIsEmpty(t *testing.T) {
	s := NewSource(t.TempDir())
	got, err := s.Enumerate("nosuchdomain")
	if err != nil {
		t.Fatalf("Enumerate on missing domain: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Enumerate on missing domain = %v, want empty", got)
	}
}

func TestSourceQueryProbesWithoutReading(t *testing.T) {
	s := NewSource(t.TempDir())
	p := asset.NewPath("engine//models/hero/mesh.obj")

	if _, ok := s.Query(p); ok {
		t.Fatal("Query should report ok=false for a missing file")
	}

	if err := s.Write(p, []byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	res, ok := s.Query(p)
	if !ok {
		t.Fatal("Query should report ok=true once the file exists")
	}
	if !res.Exists || res.ConcreteTypeHint != "obj" || res.Size != 10 {
		t.Fatalf("Query result = %+v, unexpected", res)
	}
}

func TestSourceFilePathCreatesParentDirs(t *testing.T) {
	root := t.TempDir()
	s := NewSource(root)
	p := asset.NewPath("engine//deep/nested/scope/asset.obj")
	if err := s.Write(p, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(s.filePath(p)); err != nil {
		t.Fatalf("expected file to exist on disk: %v", err)
	}
}
