package logger

import "testing"

func TestDocumentKeyObfuscation(t *testing.T) {
	Setup("info", "text", true)
	defer Setup("info", "text", false)

	got := DocumentKey("doc:42", 42)
	if got == "doc:42" {
		t.Fatalf("DocumentKey leaked the raw key with HideUserData set")
	}
	if want := "Document@42"; got != want {
		t.Fatalf("DocumentKey() = %q, want %q", got, want)
	}
}

func TestDocumentKeyRevealsByDefault(t *testing.T) {
	Setup("info", "text", false)

	if got := DocumentKey("doc:42", 42); got != "doc:42" {
		t.Fatalf("DocumentKey() = %q, want raw key", got)
	}
}

func TestIndexAndFieldHelpersRespectHideUserData(t *testing.T) {
	Setup("info", "text", true)
	defer Setup("info", "text", false)

	if got := IndexName("products-idx"); got == "products-idx" {
		t.Fatalf("IndexName leaked the raw value")
	}
	if got, want := FieldName("title", 7), "Field@7"; got != want {
		t.Fatalf("FieldName() = %q, want %q", got, want)
	}
	if got, want := FieldPath("meta.title", 3), "FieldPath@3"; got != want {
		t.Fatalf("FieldPath() = %q, want %q", got, want)
	}
}

func TestHideUserDataReflectsSetup(t *testing.T) {
	Setup("info", "text", true)
	if !HideUserData() {
		t.Fatal("HideUserData() = false after Setup(..., true)")
	}
	Setup("info", "text", false)
	if HideUserData() {
		t.Fatal("HideUserData() = true after Setup(..., false)")
	}
}
