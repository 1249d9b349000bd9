package hidden

import "testing"

func TestObfuscatedIndexName(t *testing.T) {
	h := NewIndexName("products-idx")
	if got := h.Obfuscated(); got[:6] != "Index@" {
		t.Fatalf("expected Index@ prefix, got %q", got)
	}
	if h.Unsafe() != "products-idx" {
		t.Fatalf("unexpected raw value: %q", h.Unsafe())
	}
}

func TestObfuscatedFieldAndDocument(t *testing.T) {
	f := NewFieldName("title", 7)
	if got, want := f.Obfuscated(), "Field@7"; got != want {
		t.Fatalf("Obfuscated() = %q, want %q", got, want)
	}
	d := NewDocumentKey("doc:42", 42)
	if got, want := d.Obfuscated(), "Document@42"; got != want {
		t.Fatalf("Obfuscated() = %q, want %q", got, want)
	}
}

func TestFormatReveal(t *testing.T) {
	h := NewIndexName("secret-idx")
	if got := h.Format(true); got != "secret-idx" {
		t.Fatalf("Format(true) = %q, want raw value", got)
	}
	if got := h.Format(false); got == "secret-idx" {
		t.Fatalf("Format(false) leaked raw value")
	}
}

func TestComparePrefixTiebreak(t *testing.T) {
	a := NewIndexName("foo")
	b := NewIndexName("foobar")
	if c := a.Compare(b); c >= 0 {
		t.Fatalf("Compare(foo, foobar) = %d, want negative", c)
	}
	if c := b.Compare(a); c <= 0 {
		t.Fatalf("Compare(foobar, foo) = %d, want positive", c)
	}
}

func TestCaseInsensitiveCompare(t *testing.T) {
	a := NewIndexName("MyIndex")
	b := NewIndexName("myindex")
	if c := a.CaseInsensitiveCompare(b); c != 0 {
		t.Fatalf("CaseInsensitiveCompare = %d, want 0", c)
	}
	if c := a.Compare(b); c == 0 {
		t.Fatalf("Compare should be case-sensitive and differ")
	}
}
