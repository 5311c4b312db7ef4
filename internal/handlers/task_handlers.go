package handlers

import (
	"net/http"

	"venue_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// TaskHandler serves tasks.
type TaskHandler struct {
	taskService services.TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(ts services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: ts}
}

// GetTasks lists tasks visible to the caller. Query: date, status.
func (h *TaskHandler) GetTasks(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	tasks, err := h.taskService.List(c.Request.Context(), actor, c.Query("date"), c.Query("status"))
	if err != nil {
		respondError(c, err, "Failed to fetch tasks.")
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTasksByDate(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	tasks, err := h.taskService.List(c.Request.Context(), actor, c.Param("date"), "")
	if err != nil {
		respondError(c, err, "Failed to fetch tasks.")
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetShiftTasks(c *gin.Context) {
	tasks, err := h.taskService.ListShiftTasks(c.Request.Context(), c.Param("date"))
	if err != nil {
		respondError(c, err, "Failed to fetch shift tasks.")
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	task, err := h.taskService.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err, "Failed to fetch task.")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req services.TaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.taskService.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err, "Failed to create task.")
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.TaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.taskService.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err, "Failed to update task.")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateTaskStatus(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.TaskStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := h.taskService.UpdateStatus(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err, "Failed to update task status.")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) CompleteTask(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.CompleteTaskRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	task, err := h.taskService.Complete(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err, "Failed to complete task.")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.taskService.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, err, "Failed to delete task.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

func (h *TaskHandler) GetTaskStats(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	stats, err := h.taskService.Stats(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err, "Failed to fetch task statistics.")
		return
	}
	c.JSON(http.StatusOK, stats)
}
