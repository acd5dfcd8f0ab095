package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrInvalidRecord, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", ErrNoInput), http.StatusNotFound},
		{ErrStoreUnavailable, http.StatusServiceUnavailable},
		{ErrTimeout, http.StatusServiceUnavailable},
		{errors.New("anything else"), http.StatusInternalServerError},
		{New(ErrInternal, http.StatusBadGateway, "custom"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		if got := HTTPStatusCode(tc.err); got != tc.want {
			t.Errorf("HTTPStatusCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrCheckpointFailed, http.StatusServiceUnavailable, "redis down: %s", "dial refused")
	if !errors.Is(err, ErrCheckpointFailed) {
		t.Error("AppError does not unwrap to its sentinel")
	}
	if want := "checkpoint operation failed: redis down: dial refused"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
