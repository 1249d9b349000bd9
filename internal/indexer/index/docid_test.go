package index

import "testing"

func TestDocIDMapAssignAndLookup(t *testing.T) {
	m := NewDocIDMap()
	id1 := m.Assign("doc-a")
	id2 := m.Assign("doc-b")
	if id1 == id2 {
		t.Fatalf("distinct keys got the same id: %d", id1)
	}
	if again := m.Assign("doc-a"); again != id1 {
		t.Fatalf("Assign on existing key = %d, want %d", again, id1)
	}
	if key, ok := m.Key(id1); !ok || key != "doc-a" {
		t.Fatalf("Key(%d) = %q, %v, want doc-a, true", id1, key, ok)
	}
}

func TestDocIDMapRestoreIsNoopForKnownKey(t *testing.T) {
	m := NewDocIDMap()
	id := m.Assign("doc-a")
	m.Restore("doc-a", 99)
	if key, ok := m.Key(id); !ok || key != "doc-a" {
		t.Fatalf("Key(%d) = %q, %v, want doc-a, true (Restore must not override an existing key)", id, key, ok)
	}
	if got, ok := m.Lookup("doc-a"); !ok || got != id {
		t.Fatalf("Lookup(doc-a) = %d, %v, want %d, true", got, ok, id)
	}
}

func TestDocIDMapRestoreRecoversPriorAssignment(t *testing.T) {
	m := NewDocIDMap()
	m.Restore("doc-a", 5)
	m.Restore("doc-b", 2)

	if key, ok := m.Key(5); !ok || key != "doc-a" {
		t.Fatalf("Key(5) = %q, %v, want doc-a, true", key, ok)
	}
	if key, ok := m.Key(2); !ok || key != "doc-b" {
		t.Fatalf("Key(2) = %q, %v, want doc-b, true", key, ok)
	}
	if _, ok := m.Key(0); ok {
		t.Fatalf("Key(0) should not resolve: no key was ever assigned id 0")
	}

	// A fresh Assign after restoring higher ids must not collide with them.
	next := m.Assign("doc-c")
	if next <= 5 {
		t.Fatalf("Assign after Restore = %d, want an id greater than the highest restored id (5)", next)
	}
}
