package progress

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"audit-backend/internal/shared/telemetry"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients hit this behind the same CORS policy as the REST API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler streams progress events for one audit over a websocket. The
// connection closes when the client goes away; a completed or failed event
// ends the stream.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		auditID := c.Param("id")
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			telemetry.Warn("progress.upgrade_failed", map[string]any{
				"audit_id": auditID,
				"error":    err.Error(),
			})
			return
		}
		defer conn.Close()

		events, cancel := hub.Subscribe(auditID)
		defer cancel()

		// Reader goroutine only notices the client closing.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-c.Request.Context().Done():
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case event, ok := <-events:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(event); err != nil {
					return
				}
				if event.Stage == "completed" || event.Stage == "failed" {
					return
				}
			}
		}
	}
}
