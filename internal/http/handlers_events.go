package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"budgetbuddy/internal/log"
)

// handleEvents streams notify events as server-sent events until the client
// disconnects or the server shuts down. Slow clients lose events rather than
// blocking publishers.
func (s *Server) handleEvents(c *gin.Context) {
	events, unsubscribe := s.deps.Events.Channel(32)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	keepAlive := time.NewTicker(s.opts.EventKeepAlive)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	logger := log.FromContext(ctx)
	logger.DebugContext(ctx, "Event stream opened")
	defer logger.DebugContext(ctx, "Event stream closed")

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closing:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(string(e.Kind), e)
			c.Writer.Flush()
		case <-keepAlive.C:
			if _, err := c.Writer.WriteString(": keep-alive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
