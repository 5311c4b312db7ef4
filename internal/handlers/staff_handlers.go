package handlers

import (
	"net/http"

	"venue_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// StaffHandler serves shift schedules.
type StaffHandler struct {
	scheduleService services.ScheduleService
}

// NewStaffHandler creates a new StaffHandler.
func NewStaffHandler(ss services.ScheduleService) *StaffHandler {
	return &StaffHandler{scheduleService: ss}
}

// --- Shift Handler Methods ---

// CreateShift schedules a user for a shift. Management only.
func (h *StaffHandler) CreateShift(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req services.CreateShiftRequest
	if !bindJSON(c, &req) {
		return
	}
	shift, err := h.scheduleService.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err, "Failed to create shift.")
		return
	}
	c.JSON(http.StatusCreated, shift)
}

func (h *StaffHandler) GetShiftsByDate(c *gin.Context) {
	shifts, err := h.scheduleService.ListByDate(c.Request.Context(), c.Param("date"))
	if err != nil {
		respondError(c, err, "Failed to fetch shifts.")
		return
	}
	c.JSON(http.StatusOK, shifts)
}

// GetShiftsByUser lists a user's shifts between ?startDate and ?endDate.
func (h *StaffHandler) GetShiftsByUser(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	userID, ok := idParam(c, "userId")
	if !ok {
		return
	}
	shifts, err := h.scheduleService.ListByUser(c.Request.Context(), actor, userID, c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		respondError(c, err, "Failed to fetch shifts.")
		return
	}
	c.JSON(http.StatusOK, shifts)
}

func (h *StaffHandler) GetOnDuty(c *gin.Context) {
	users, err := h.scheduleService.OnDuty(c.Request.Context(), c.Param("date"))
	if err != nil {
		respondError(c, err, "Failed to fetch staff on duty.")
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *StaffHandler) DeleteShift(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.scheduleService.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, err, "Failed to delete shift.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Shift deleted successfully"})
}
