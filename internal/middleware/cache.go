package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CacheConfig controls the Cache-Control header put on GET responses.
type CacheConfig struct {
	MaxAge  int
	Private bool
	Vary    []string
}

// DefaultCacheConfig keeps listing responses fresh enough for the dashboard
// while sparing repeated identical fetches.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxAge:  30,
		Private: true,
		Vary:    []string{"Authorization"},
	}
}

// Cache sets Cache-Control on GET responses; every other method is no-store.
func Cache(config CacheConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Header("Cache-Control", "no-store")
			c.Next()
			return
		}

		scope := "public"
		if config.Private {
			scope = "private"
		}
		directives := []string{scope, "max-age=" + strconv.Itoa(config.MaxAge), "must-revalidate"}
		c.Header("Cache-Control", strings.Join(directives, ", "))
		if len(config.Vary) > 0 {
			c.Header("Vary", strings.Join(config.Vary, ", "))
		}
		c.Next()
	}
}
