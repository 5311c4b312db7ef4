package handlers

import (
	"net/http"

	"venue_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// AlertHandler serves stock alerts.
type AlertHandler struct {
	alertService services.AlertService
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(as services.AlertService) *AlertHandler {
	return &AlertHandler{alertService: as}
}

// GetAlerts lists alerts, optionally filtered by ?acknowledged=true|false.
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	acknowledged, ok := queryBool(c, "acknowledged")
	if !ok {
		return
	}
	alerts, err := h.alertService.ListAlerts(c.Request.Context(), acknowledged)
	if err != nil {
		respondError(c, err, "Failed to fetch alerts.")
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *AlertHandler) Recheck(c *gin.Context) {
	created, err := h.alertService.Recheck(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to check stock alerts.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created, "count": len(created)})
}

func (h *AlertHandler) Acknowledge(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	alert, err := h.alertService.Acknowledge(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err, "Failed to acknowledge alert.")
		return
	}
	c.JSON(http.StatusOK, alert)
}
