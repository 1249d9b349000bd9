// Package hidden wraps user-controlled names (index, field, document
// identifiers) so that logging call sites can render an obfuscated form
// instead of the raw value when configured to hide user data.
package hidden

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// Kind selects the obfuscated rendering format for a String.
type Kind int

const (
	KindIndex Kind = iota
	KindField
	KindFieldPath
	KindDocument
)

// String is an opaque wrapper over a user-controlled name. It owns its bytes
// and supports both the raw value (for functional use) and an obfuscated
// rendering (for logs).
type String struct {
	value string
	kind  Kind
	id    uint64
}

// NewIndexName wraps an index name; its obfuscated form hashes the value.
func NewIndexName(name string) *String {
	return &String{value: name, kind: KindIndex}
}

// NewFieldName wraps a field name with a stable numeric id used in its
// obfuscated rendering.
func NewFieldName(name string, fieldID uint64) *String {
	return &String{value: name, kind: KindField, id: fieldID}
}

// NewFieldPath wraps a JSON field path with a stable numeric id.
func NewFieldPath(path string, fieldID uint64) *String {
	return &String{value: path, kind: KindFieldPath, id: fieldID}
}

// NewDocumentKey wraps a document key with a stable numeric id used in its
// obfuscated rendering.
func NewDocumentKey(key string, docID uint64) *String {
	return &String{value: key, kind: KindDocument, id: docID}
}

// Unsafe returns the raw underlying value. Callers must not log the result
// unless hideUserDataFromLog is known to be disabled.
func (s *String) Unsafe() string {
	if s == nil {
		return ""
	}
	return s.value
}

// Obfuscated renders the hidden string in its redacted form, matching the
// original engine's `Index@<sha1>`, `Field@<id>`, `Document@<id>` formats.
func (s *String) Obfuscated() string {
	if s == nil {
		return ""
	}
	switch s.kind {
	case KindIndex:
		sum := sha1.Sum([]byte(s.value))
		return "Index@" + hex.EncodeToString(sum[:])
	case KindField:
		return fmt.Sprintf("Field@%d", s.id)
	case KindFieldPath:
		return fmt.Sprintf("FieldPath@%d", s.id)
	case KindDocument:
		return fmt.Sprintf("Document@%d", s.id)
	default:
		return "Text"
	}
}

// Format renders the raw value when reveal is true, the obfuscated form
// otherwise. Log call sites pass the `hideUserDataFromLog` config flag as
// the inverse of reveal.
func (s *String) Format(reveal bool) string {
	if reveal {
		return s.Unsafe()
	}
	return s.Obfuscated()
}

// Compare performs a byte-wise comparison against another String, comparing
// length as a tiebreaker when one value is a prefix of the other — matching
// HiddenString_Compare's strncmp-then-length-diff behavior.
func (s *String) Compare(other *String) int {
	return compareStrings(s.value, other.value, false)
}

// CaseInsensitiveCompare performs a case-insensitive variant of Compare.
func (s *String) CaseInsensitiveCompare(other *String) int {
	return compareStrings(s.value, other.value, true)
}

func compareStrings(left, right string, caseInsensitive bool) int {
	if caseInsensitive {
		left = strings.ToLower(left)
		right = strings.ToLower(right)
	}
	minLen := len(left)
	if len(right) < minLen {
		minLen = len(right)
	}
	if c := strings.Compare(left[:minLen], right[:minLen]); c != 0 {
		return c
	}
	return len(left) - len(right)
}
