package handlers

import (
	"net/http"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// DeliveryHandler serves the delivery intake workflow.
type DeliveryHandler struct {
	deliveryService services.DeliveryService
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(ds services.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{deliveryService: ds}
}

// GetDeliveries lists deliveries. Query: status, from, to (YYYY-MM-DD).
func (h *DeliveryHandler) GetDeliveries(c *gin.Context) {
	var filter models.DeliveryFilter
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}
	var ok bool
	if filter.FromDate, ok = queryDate(c, "from"); !ok {
		return
	}
	if filter.ToDate, ok = queryDate(c, "to"); !ok {
		return
	}

	deliveries, err := h.deliveryService.ListDeliveries(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to fetch deliveries.")
		return
	}
	c.JSON(http.StatusOK, deliveries)
}

func (h *DeliveryHandler) GetDeliveryByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	delivery, err := h.deliveryService.GetDelivery(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch delivery.")
		return
	}
	c.JSON(http.StatusOK, delivery)
}

func (h *DeliveryHandler) CreateDelivery(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req services.CreateDeliveryRequest
	if !bindJSON(c, &req) {
		return
	}
	delivery, err := h.deliveryService.CreateDelivery(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err, "Failed to create delivery.")
		return
	}
	c.JSON(http.StatusCreated, delivery)
}

// AcceptDelivery receives a pending delivery. An empty body receives nothing.
func (h *DeliveryHandler) AcceptDelivery(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.AcceptDeliveryRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	delivery, err := h.deliveryService.AcceptDelivery(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err, "Failed to accept delivery.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Delivery accepted successfully", "delivery": delivery})
}

func (h *DeliveryHandler) RejectDelivery(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.RejectDeliveryRequest
	if !bindJSON(c, &req) {
		return
	}
	delivery, err := h.deliveryService.RejectDelivery(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err, "Failed to reject delivery.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Delivery rejected", "delivery": delivery})
}
