package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", E(CodeInvalidArgument, "op", "bad", nil), http.StatusBadRequest},
		{"unauthorized", E(CodeUnauthorized, "op", "no", nil), http.StatusUnauthorized},
		{"forbidden detail", ED(CodeForbidden, "op", "limit", UpgradeInfo{Error: "x"}), http.StatusForbidden},
		{"not found", E(CodeNotFound, "op", "missing", nil), http.StatusNotFound},
		{"conflict", E(CodeConflict, "op", "dup", nil), http.StatusConflict},
		{"rate limited", E(CodeTooManyRequests, "op", "slow down", nil), http.StatusTooManyRequests},
		{"unavailable", E(CodeUnavailable, "op", "down", nil), http.StatusServiceUnavailable},
		{"timeout", E(CodeTimeout, "op", "late", nil), http.StatusGatewayTimeout},
		{"internal", E(CodeInternal, "op", "boom", nil), http.StatusInternalServerError},
		{"wrapped app error", fmt.Errorf("outer: %w", E(CodeNotFound, "op", "missing", nil)), http.StatusNotFound},
		{"sentinel", fmt.Errorf("lookup: %w", ErrNotFound), http.StatusNotFound},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAppErrorMessageAndUnwrap(t *testing.T) {
	inner := errors.New("db down")
	err := E(CodeInternal, "CVService.List", "failed to list cvs", inner)

	if got := err.Error(); got != "CVService.List: failed to list cvs: db down" {
		t.Fatalf("unexpected message: %q", got)
	}
	if !errors.Is(err, inner) {
		t.Fatalf("expected wrapped error to be reachable")
	}
	if !IsCode(err, CodeInternal) || IsCode(err, CodeNotFound) {
		t.Fatalf("IsCode mismatch")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("scrape-secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword(hash, "scrape-secret"); err != nil {
		t.Fatalf("expected password to match: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatalf("expected mismatch")
	}
}
