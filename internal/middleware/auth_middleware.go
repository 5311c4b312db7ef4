package middleware

import (
	"context"
	"net/http"
	"strings"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID   = "userID"
	ContextUsername = "username"
	ContextUserRole = "userRole"
)

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authorization header required", "Use Bearer <token>"))
			return
		}

		claims, err := utils.ValidateToken(tokenString)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid or expired token", err.Error()))
			return
		}

		// Set user information in the context for downstream handlers
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextUserRole, claims.Role)

		c.Next()
	}
}

// bearerToken reads the token from the Authorization header. EventSource
// clients cannot set headers, so the access_token query parameter is accepted too.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return strings.TrimSpace(c.Query("access_token"))
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// PrincipalFrom builds the caller identity from values set by AuthMiddleware.
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	id, ok := c.Get(ContextUserID)
	if !ok {
		return models.Principal{}, false
	}
	userID, ok := id.(int64)
	if !ok {
		return models.Principal{}, false
	}
	return models.Principal{
		UserID:   userID,
		Username: c.GetString(ContextUsername),
		Role:     c.GetString(ContextUserRole),
		Origin:   c.ClientIP(),
	}, true
}

// RoleAuthMiddleware creates a Gin middleware for role-based authorization.
// It checks if the user role (from JWT claims) is one of the allowed roles.
func RoleAuthMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleStr := c.GetString(ContextUserRole)
		if roleStr == "" {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "User role not found in token claims", ""))
			return
		}

		for _, r := range allowedRoles {
			if strings.EqualFold(roleStr, r) {
				c.Next()
				return
			}
		}
		utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden,
			"You do not have permission to access this resource", "Required roles: "+strings.Join(allowedRoles, ", ")))
	}
}

// PermissionChecker answers whether a user holds a permission.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID int64, permission string) (bool, error)
}

// RequirePermission admits callers whose effective permission set contains permission.
func RequirePermission(checker PermissionChecker, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "User not authenticated", ""))
			return
		}
		allowed, err := checker.HasPermission(c.Request.Context(), principal.UserID, permission)
		if err != nil {
			utils.LoggerFromContext(c.Request.Context()).Error().Err(err).Str("permission", permission).Msg("Permission check failed")
			utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to check permissions", "Internal error"))
			return
		}
		if !allowed {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusForbidden, utils.ErrCodeForbidden, "Permission required: "+permission, ""))
			return
		}
		c.Next()
	}
}
