package handlers

import (
	"net/http"

	"venue_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// UserHandler serves staff account management.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(us services.UserService) *UserHandler {
	return &UserHandler{userService: us}
}

// ListUsers returns every account. Management only.
func (h *UserHandler) ListUsers(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	users, err := h.userService.ListUsers(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err, "Failed to fetch users.")
		return
	}
	c.JSON(http.StatusOK, users)
}

// ListActiveUsers returns active accounts to any authenticated caller.
func (h *UserHandler) ListActiveUsers(c *gin.Context) {
	users, err := h.userService.ListActiveUsers(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch users.")
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) GetUserByID(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.GetUser(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err, "Failed to fetch user.")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req services.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.CreateUser(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err, "Failed to create user.")
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.UpdateUser(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err, "Failed to update user.")
		return
	}
	c.JSON(http.StatusOK, user)
}

// SetUserActive toggles an account. The body is {"active": bool}.
func (h *UserHandler) SetUserActive(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.SetActive(c.Request.Context(), actor, id, *req.Active)
	if err != nil {
		respondError(c, err, "Failed to update user status.")
		return
	}
	c.JSON(http.StatusOK, user)
}
