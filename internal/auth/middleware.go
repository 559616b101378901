package auth

import (
	"net/http"
	"strings"

	"github.com/KevinKickass/OpenSCLCore/internal/types"
	"github.com/gin-gonic/gin"
)

// Gin context keys
const (
	ContextPermissions = "permissions"
	ContextUserID      = "user_id"
	ContextUsername    = "username"
)

// AuthMiddleware validates bearer tokens and enforces authentication
func (a *AuthService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse(types.CodeAuthUnauthorized, "missing authorization header", nil))
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse(types.CodeAuthUnauthorized, "invalid authorization header format", nil))
			return
		}

		claims, permissions, err := a.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse(types.CodeAuthUnauthorized, "invalid or expired token", nil))
			return
		}

		c.Set(ContextPermissions, permissions)
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Next()
	}
}

// RequirePermission checks if user has required permission
func RequirePermission(required Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, exists := c.Get(ContextPermissions)
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden,
				types.NewErrorResponse(types.CodeAuthUnauthorized, "no permissions found", nil))
			return
		}

		if !HasPermission(perms.([]Permission), required) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				types.NewErrorResponse(types.CodeAuthUnauthorized, "insufficient permissions",
					gin.H{"required": string(required)}))
			return
		}

		c.Next()
	}
}

func HasPermission(permissions []Permission, required Permission) bool {
	for _, p := range permissions {
		if p == required {
			return true
		}
	}
	return false
}
