package handlers

import (
	"io"
	"net/http"
	"time"

	"cuadrofirma-backend/notify"

	"github.com/gin-gonic/gin"
)

// NotificationHandler streams workflow events to the signed-in user
type NotificationHandler struct {
	hub       *notify.Hub
	keepAlive time.Duration
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(hub *notify.Hub) *NotificationHandler {
	return &NotificationHandler{hub: hub, keepAlive: 25 * time.Second}
}

// Stream handles GET /api/notificaciones/stream as server-sent events
func (h *NotificationHandler) Stream(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}

	events := h.hub.Subscribe(c.Request.Context(), id.SubjectID)
	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(string(evt.Kind), evt)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
