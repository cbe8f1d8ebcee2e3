package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSample = New(KindConflict, "SAMPLE", "sample conflict")

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("missing"), http.StatusBadRequest},
		{New(KindOTP, "X", "x"), http.StatusBadRequest},
		{New(KindNotFound, "X", "x"), http.StatusNotFound},
		{errSample, http.StatusConflict},
		{New(KindUnauthorized, "X", "x"), http.StatusUnauthorized},
		{New(KindForbidden, "X", "x"), http.StatusForbidden},
		{Unavailable(errors.New("down")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.err), tc.err.Error())
	}
}

func TestWrappedSentinelStillMatches(t *testing.T) {
	wrapped := fmt.Errorf("finalize: %w", errSample.Wrap(errors.New("E11000")))

	assert.ErrorIs(t, wrapped, errSample)
	assert.Equal(t, http.StatusConflict, Status(wrapped))
	assert.Equal(t, "sample conflict", Message(wrapped))
}

func TestMessageHidesUnclassified(t *testing.T) {
	assert.Equal(t, "Internal server error", Message(errors.New("pq: connection refused")))
}

func TestDifferentCodesDoNotMatch(t *testing.T) {
	other := New(KindConflict, "OTHER", "sample conflict")
	assert.False(t, errors.Is(other, errSample))
}
