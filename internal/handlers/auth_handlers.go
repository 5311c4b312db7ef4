package handlers

import (
	"net/http"

	"venue_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service.
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(as services.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// LoginUser handles user login.
func (h *AuthHandler) LoginUser(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	authResp, err := h.authService.Login(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		respondError(c, err, "Failed to login.")
		return
	}
	c.JSON(http.StatusOK, authResp)
}

// GetCurrentUser retrieves the profile of the currently authenticated user.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	user, err := h.authService.Me(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err, "Failed to retrieve user profile.")
		return
	}
	c.JSON(http.StatusOK, user)
}

// ChangePassword replaces the caller's password after checking the current one.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req services.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ChangePassword(c.Request.Context(), actor, req); err != nil {
		respondError(c, err, "Failed to change password.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// LogoutUser handles user logout.
// For stateless JWT, this is primarily a client-side action.
func (h *AuthHandler) LogoutUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully. Please discard your token."})
}
