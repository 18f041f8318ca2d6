package middleware

import (
	"context"
	"net/http"
	"strings"

	"avtotest/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextUserID = "user_id"
	ContextUser   = "user"
	ContextRole   = "user_role"
)

// Identity resolves bearer tokens and looks up roles.
type Identity interface {
	ResolveToken(ctx context.Context, token string) (*models.User, error)
	GetUserRole(ctx context.Context, userID uuid.UUID) (models.Role, error)
}

// AuthMiddleware requires a valid bearer token and loads the caller's role
// from the store.
func AuthMiddleware(identity Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		user, err := identity.ResolveToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		role, err := identity.GetUserRole(c.Request.Context(), user.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "No role assigned to this account"})
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user)
		c.Set(ContextRole, role)
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles. It must
// run after AuthMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get(ContextRole)
		if ok {
			for _, allowed := range roles {
				if role == allowed {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
	}
}
