package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pharmapointe/ordonnance-api/pkg/auth"
)

const ContextCollaboratorID = "collaborator_id"

type AuthMiddleware struct {
	tokens *auth.Service
}

func NewAuthMiddleware(tokens *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and stores the collaborator id in
// the request context. Claim-gated operations read it from there.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextCollaboratorID, claims.CollaboratorID)
		c.Set("collaborator_email", claims.Email)
		c.Next()
	}
}

// CollaboratorID returns the authenticated collaborator, or false when the
// route skipped Authenticate.
func CollaboratorID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextCollaboratorID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
