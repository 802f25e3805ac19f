package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{InvalidErr("bad", nil), http.StatusBadRequest},
		{UnauthorizedErr("no"), http.StatusUnauthorized},
		{NotFoundErr("gone"), http.StatusNotFound},
		{BadGatewayErr("upstream", nil), http.StatusBadGateway},
		{UnavailableErr("later", nil), http.StatusServiceUnavailable},
		{Wrap(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", UnauthorizedErr("no")), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestPublicMessageHidesCause(t *testing.T) {
	err := Wrap(errors.New("dial tcp 10.0.0.3:3306: connection refused"))
	if got := PublicMessage(err); got != defaultPublicMsg {
		t.Fatalf("PublicMessage = %q", got)
	}
	if got := PublicMessage(errors.New("secret")); got != defaultPublicMsg {
		t.Fatalf("PublicMessage for plain error = %q", got)
	}
	if !errors.Is(err, err.Err) {
		t.Fatal("Unwrap should expose the cause")
	}
}

func TestIsKind(t *testing.T) {
	if !IsKind(fmt.Errorf("ctx: %w", UnavailableErr("x", nil)), Unavailable) {
		t.Fatal("expected Unavailable")
	}
	if IsKind(errors.New("x"), Internal) {
		t.Fatal("plain errors have no kind")
	}
}
