package handlers

import (
	"io"

	"object-detection-sensor/internal/server/sse"

	"github.com/gin-gonic/gin"
)

// EventHandler streamt Tick-Ereignisse per Server-Sent Events
type EventHandler struct {
	hub *sse.Hub
}

// NewEventHandler erstellt einen neuen Event-Handler
func NewEventHandler(hub *sse.Hub) *EventHandler {
	return &EventHandler{hub: hub}
}

// RegisterRoutes registriert die Event-Routen
func (h *EventHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/events", h.StreamEvents)
}

// StreamEvents hält die Verbindung offen und sendet jedes Tick-Ereignis
func (h *EventHandler) StreamEvents(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	client := make(sse.Client, 10) // Puffer für 10 Nachrichten
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	// Header sofort senden, damit der Client verbunden ist
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client:
			if !ok {
				return false // Hub beendet oder Client entfernt
			}
			c.SSEvent("tick", string(msg))
			return true
		case <-ctx.Done():
			return false
		}
	})
}
