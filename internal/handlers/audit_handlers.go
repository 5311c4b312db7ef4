package handlers

import (
	"net/http"
	"strconv"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/services"
	"venue_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AuditHandler serves the audit log.
type AuditHandler struct {
	auditService services.AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(as services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: as}
}

// GetAuditLog lists recent entries. Query: user_id, entity_type, limit.
func (h *AuditHandler) GetAuditLog(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var filter models.AuditFilter
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			utils.RespondValidationFailed(c, "user_id must be an integer")
			return
		}
		filter.UserID = &id
	}
	if entityType := c.Query("entity_type"); entityType != "" {
		filter.EntityType = &entityType
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	if limit != nil {
		filter.Limit = *limit
	}

	entries, err := h.auditService.List(c.Request.Context(), actor, filter)
	if err != nil {
		respondError(c, err, "Failed to fetch audit log.")
		return
	}
	c.JSON(http.StatusOK, entries)
}
