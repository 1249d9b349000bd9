package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestQueryErrorMessage(t *testing.T) {
	err := NewQueryError(KindSyntax, "unexpected token %q", "FOO")
	if got, want := err.Error(), "ERR syntax: unexpected token \"FOO\""; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestKindOf(t *testing.T) {
	err := NewQueryError(KindNoRoute, "slot 7638 has no shard")
	if got := KindOf(err); got != KindNoRoute {
		t.Fatalf("KindOf = %v, want NoRoute", got)
	}
	if got := KindOf(errors.New("plain")); got != KindGeneric {
		t.Fatalf("KindOf(plain) = %v, want Generic", got)
	}
}

func TestHTTPStatusCodeForQueryError(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindTimedOut, http.StatusGatewayTimeout},
		{KindParseArgs, http.StatusBadRequest},
		{KindNoIndex, http.StatusNotFound},
		{KindNoConnection, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		err := NewQueryError(c.kind, "x")
		if got := HTTPStatusCode(err); got != c.want {
			t.Errorf("HTTPStatusCode(%v) = %d, want %d", c.kind, got, c.want)
		}
	}
}
