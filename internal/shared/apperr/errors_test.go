package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesSentinelAfterEnrichment(t *testing.T) {
	sentinel := Conflict(CodeHoldConflict, "seat is held by someone else")
	enriched := sentinel.WithField("seat", "h1/A/1/1")
	wrapped := fmt.Errorf("acquire: %w", enriched)

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.False(t, errors.Is(wrapped, Conflict(CodeHoldExpired, "")))
	assert.Nil(t, sentinel.Fields, "sentinel must not be mutated")

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "h1/A/1/1", got.Fields["seat"])
}

func TestHTTPStatusByKind(t *testing.T) {
	cases := map[*Error]int{
		Validation(CodeInvalidInput, ""):                    http.StatusBadRequest,
		NotFound(CodeOrderNotFound, ""):                     http.StatusNotFound,
		Conflict(CodeSeatUnavailable, ""):                   http.StatusConflict,
		Unauthorized(""):                                    http.StatusUnauthorized,
		Forbidden(""):                                       http.StatusForbidden,
		Transient(CodePaymentUnavailable, "", nil):          http.StatusServiceUnavailable,
		Fatal("ticket count mismatch", errors.New("boom")): http.StatusInternalServerError,
	}
	for e, status := range cases {
		assert.Equal(t, status, e.HTTPStatus(), e.Code)
	}
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindFatal, KindOf(errors.New("plain")))
	assert.Equal(t, KindTransient, KindOf(Transient(CodeStoreUnavailable, "db", nil)))
	assert.True(t, IsKind(fmt.Errorf("x: %w", NotFound(CodeSeatNotFound, "")), KindNotFound))
	assert.True(t, HasCode(Validation(CodeInvalidSeat, ""), CodeInvalidSeat))
}

func TestCauseIsUnwrapped(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transient(CodePaymentUnavailable, "payment authority unreachable", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
