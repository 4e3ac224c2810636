package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err  *AppError
		code int
	}{
		{Validation("bad input", nil), http.StatusBadRequest},
		{NotFound("prescription", nil), http.StatusNotFound},
		{Conflict("already claimed", nil), http.StatusConflict},
		{Permission("claim required"), http.StatusForbidden},
		{Dependency("document store unavailable", nil), http.StatusBadGateway},
		{Internal("internal error", stderrors.New("boom")), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.StatusCode(), tc.err.Kind.String())
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("row not found")
	err := NotFound("cycle", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, "cycle not found: row not found", err.Error())
}

func TestKindPredicatesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("advance prescription: %w", Conflict("duplicate cycle number", nil))

	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsConflict(stderrors.New("plain")))
}
