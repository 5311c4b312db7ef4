package handlers

import (
	"net/http"

	"venue_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// TemplateHandler serves task templates.
type TemplateHandler struct {
	templateService services.TemplateService
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(ts services.TemplateService) *TemplateHandler {
	return &TemplateHandler{templateService: ts}
}

func (h *TemplateHandler) GetTemplates(c *gin.Context) {
	templates, err := h.templateService.List(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to fetch templates.")
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (h *TemplateHandler) GetTemplateByID(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	tmpl, err := h.templateService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to fetch template.")
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// CreateTemplate stores a new task template. Management only.
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req services.TemplateRequest
	if !bindJSON(c, &req) {
		return
	}
	tmpl, err := h.templateService.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err, "Failed to create template.")
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.templateService.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, err, "Failed to delete template.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task template deleted successfully"})
}
