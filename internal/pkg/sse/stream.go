package sse

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// StreamOptions controls Serve
type StreamOptions struct {
	KeepAlive time.Duration
	// CloseOn lists event types after which the stream ends
	CloseOn []string
}

// Serve registers client on hub and streams its events to the response
// until the request ends or a CloseOn event has been written.
func Serve(c *gin.Context, hub *Hub, client *Client, opts StreamOptions) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	hub.Register(client)
	defer hub.Unregister(client)

	connected := Event{Type: "connected", Data: map[string]interface{}{
		"client_id": client.ID,
		"resource":  client.Resource,
	}}
	if _, err := fmt.Fprint(c.Writer, connected.FormatSSE()); err != nil {
		return
	}
	c.Writer.Flush()

	keepAlive := opts.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	closeOn := make(map[string]struct{}, len(opts.CloseOn))
	for _, t := range opts.CloseOn {
		closeOn[t] = struct{}{}
	}

	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case event, ok := <-client.Channel:
			if !ok {
				return
			}
			if _, err := fmt.Fprint(c.Writer, event.FormatSSE()); err != nil {
				return
			}
			c.Writer.Flush()
			if _, stop := closeOn[event.Type]; stop {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
