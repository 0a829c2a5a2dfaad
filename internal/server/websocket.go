package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades to WebSocket and streams run events to the client.
// An optional ?run=<id> query restricts the stream to one run.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	only := c.Query("run")
	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	// Read pump: detect client disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				unsubscribe()
				return
			}
		}
	}()

	// Write pump: send events as JSON.
	for ev := range events {
		if only != "" && ev.RunID != only {
			continue
		}
		if err := conn.WriteJSON(ev); err != nil {
			s.log.Debug().Err(err).Msg("websocket write failed")
			return
		}
	}
}
