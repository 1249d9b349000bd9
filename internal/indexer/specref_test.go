package indexer

import "testing"

func TestWeakRefPromoteSucceedsWhileStrongAlive(t *testing.T) {
	strong := NewStrongRef("spec-a")
	weak := strong.Weak()

	promoted, ok := weak.Promote()
	if !ok {
		t.Fatal("expected Promote to succeed while the original StrongRef is alive")
	}
	if promoted.Get() != "spec-a" {
		t.Fatalf("Get() = %q, want spec-a", promoted.Get())
	}
	promoted.Release()
	strong.Release()
}

func TestWeakRefPromoteFailsAfterRelease(t *testing.T) {
	strong := NewStrongRef("spec-b")
	weak := strong.Weak()
	strong.Release()

	if _, ok := weak.Promote(); ok {
		t.Fatal("expected Promote to fail once the last StrongRef is released")
	}
}

func TestStrongRefCloneSharesRefcount(t *testing.T) {
	strong := NewStrongRef(42)
	clone := strong.Clone()
	weak := strong.Weak()

	strong.Release()
	if _, ok := weak.Promote(); !ok {
		t.Fatal("expected Promote to succeed: clone still holds a reference")
	}

	clone.Release()
}
