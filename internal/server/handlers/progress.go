package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/djpapzin/papzincrew/internal/events"
)

// ProgressHandler streams upload progress over server-sent events
type ProgressHandler struct {
	bus events.EventBus
}

func NewProgressHandler(bus events.EventBus) *ProgressHandler {
	return &ProgressHandler{bus: bus}
}

// Stream handles GET /api/uploads/:id/progress
func (h *ProgressHandler) Stream(c *gin.Context) {
	uploadID := c.Param("id")
	if uploadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "upload id required"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// eventChan is never closed: a dispatch that raced the disconnect may
	// still be inside the handler, and a send on a closed channel would
	// panic the bus's dispatcher. The done channel ends both the handler
	// and the stream loop instead.
	eventChan := make(chan events.Event, 10)
	done := make(chan struct{})

	filter := events.EventFilter{
		Types: []events.EventType{
			events.EventUploadProgress,
			events.EventUploadCompleted,
			events.EventUploadFailed,
			events.EventUploadCancelled,
		},
		Target: uploadID,
	}

	subscription, err := h.bus.Subscribe(filter, func(e events.Event) error {
		select {
		case <-done:
		case eventChan <- e:
		default:
			// Buffer full, drop; the next update supersedes it anyway
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe to progress stream"})
		return
	}

	c.SSEvent("", gin.H{
		"type": "connected",
		"time": time.Now(),
	})
	c.Writer.Flush()

	go func() {
		<-c.Request.Context().Done()
		h.bus.Unsubscribe(subscription.ID)
		close(done)
	}()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-done:
			return false
		case event := <-eventChan:
			c.SSEvent("", gin.H{
				"type": string(event.Type),
				"data": event.Data,
				"time": event.Timestamp,
			})
			// Terminal events end the stream
			return event.Type == events.EventUploadProgress
		}
	})
}
