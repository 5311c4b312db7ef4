package handlers

import (
	"io"
	"net/http"
	"time"

	"venue_ops_backend/internal/realtime"
	"venue_ops_backend/internal/services"
	"venue_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// NotificationHandler serves the caller's inbox and the realtime event stream.
type NotificationHandler struct {
	notificationService services.NotificationService
	broadcaster         realtime.Broadcaster
	heartbeat           time.Duration
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(ns services.NotificationService, b realtime.Broadcaster) *NotificationHandler {
	return &NotificationHandler{notificationService: ns, broadcaster: b, heartbeat: 25 * time.Second}
}

// GetNotifications lists the caller's notifications. Query: unread, limit.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	unread, ok := queryBool(c, "unread")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}
	items, err := h.notificationService.List(c.Request.Context(), actor, unread != nil && *unread, n)
	if err != nil {
		respondError(c, err, "Failed to fetch notifications.")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), actor, id); err != nil {
		respondError(c, err, "Failed to mark notification read.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	n, err := h.notificationService.MarkAllRead(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err, "Failed to mark notifications read.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": n})
}

// Events streams broadcast and personal events as server-sent events until
// the client disconnects.
func (h *NotificationHandler) Events(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	events, cancel, err := h.broadcaster.Subscribe(ctx, actor.UserID)
	if err != nil {
		respondError(c, err, "Failed to subscribe to events.")
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	utils.LoggerFromContext(ctx).Debug().Int64("user_id", actor.UserID).Msg("Event stream opened")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(event.Type, event)
			return true
		case <-ticker.C:
			c.SSEvent("ping", utils.Int64ToStr(time.Now().Unix()))
			return true
		}
	})
}
