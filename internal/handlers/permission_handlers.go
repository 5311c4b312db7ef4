package handlers

import (
	"net/http"

	"venue_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// PermissionHandler serves the permission catalog and per-user overrides.
type PermissionHandler struct {
	permService services.PermissionService
}

// NewPermissionHandler creates a new PermissionHandler.
func NewPermissionHandler(ps services.PermissionService) *PermissionHandler {
	return &PermissionHandler{permService: ps}
}

func (h *PermissionHandler) Available(c *gin.Context) {
	c.JSON(http.StatusOK, h.permService.AvailablePermissions())
}

func (h *PermissionHandler) RolePermissions(c *gin.Context) {
	perms, err := h.permService.RolePermissions(c.Request.Context(), c.Param("role"))
	if err != nil {
		respondError(c, err, "Failed to fetch role permissions.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": c.Param("role"), "permissions": perms})
}

// MyPermissions returns the caller's effective permission set.
func (h *PermissionHandler) MyPermissions(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	perms, err := h.permService.EffectivePermissions(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err, "Failed to fetch permissions.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

func (h *PermissionHandler) UserPermissions(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	set, err := h.permService.UserPermissions(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err, "Failed to fetch user permissions.")
		return
	}
	c.JSON(http.StatusOK, set)
}

func (h *PermissionHandler) Grant(c *gin.Context) {
	h.single(c, true)
}

func (h *PermissionHandler) Revoke(c *gin.Context) {
	h.single(c, false)
}

func (h *PermissionHandler) single(c *gin.Context, grant bool) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req services.PermissionRequest
	if !bindJSON(c, &req) {
		return
	}
	var err error
	if grant {
		err = h.permService.Grant(c.Request.Context(), actor, req.UserID, req.Permission)
	} else {
		err = h.permService.Revoke(c.Request.Context(), actor, req.UserID, req.Permission)
	}
	if err != nil {
		respondError(c, err, "Failed to update permissions.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Permissions updated successfully"})
}

func (h *PermissionHandler) BulkGrant(c *gin.Context) {
	h.bulk(c, true)
}

func (h *PermissionHandler) BulkRevoke(c *gin.Context) {
	h.bulk(c, false)
}

func (h *PermissionHandler) bulk(c *gin.Context, grant bool) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req services.BulkPermissionRequest
	if !bindJSON(c, &req) {
		return
	}
	var err error
	if grant {
		err = h.permService.BulkGrant(c.Request.Context(), actor, req)
	} else {
		err = h.permService.BulkRevoke(c.Request.Context(), actor, req)
	}
	if err != nil {
		respondError(c, err, "Failed to update permissions.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Permissions updated successfully", "count": len(req.Permissions)})
}
