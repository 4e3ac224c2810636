package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	apperr "github.com/pharmapointe/ordonnance-api/pkg/errors"
)

func TestErrorHandlerMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		code int
	}{
		{apperr.Validation("bad input", nil), http.StatusBadRequest},
		{apperr.NotFound("prescription", nil), http.StatusNotFound},
		{apperr.Conflict("already claimed", nil), http.StatusConflict},
		{apperr.Permission("claim required"), http.StatusForbidden},
		{apperr.Dependency("store unavailable", nil), http.StatusBadGateway},
	}

	for _, tc := range cases {
		r := gin.New()
		r.Use(ErrorHandler())
		r.GET("/boom", func(c *gin.Context) {
			c.Error(tc.err)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/boom", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, tc.code, w.Code)
	}
}
