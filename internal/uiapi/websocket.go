package uiapi

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// tailInterval is how often streamLogs polls the log queue for new entries.
// The queue is a pull-based FIFO rather than a pub/sub channel (internal/
// queues.LogQueue, grounded on a drop-none backlog instead of the teacher's
// drop-if-slow events.Bus), so tailing it means polling rather than
// blocking on a channel receive.
const tailInterval = 250 * time.Millisecond

// streamLogs implements GET /logs/stream: flushes the current backlog
// immediately, then keeps pushing newly logged entries until the client
// disconnects.
func (s *Server) streamLogs(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("uiapi: ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(tailInterval)
	defer ticker.Stop()

	for {
		for _, entry := range s.Logs.DrainAll() {
			if err := conn.WriteJSON(entry); err != nil {
				return
			}
		}
		select {
		case <-ticker.C:
		case <-c.Request.Context().Done():
			return
		}
	}
}
