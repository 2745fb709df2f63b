package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// wsMessage is the websocket message envelope.
type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServeWs handles GET /ws/transcribe?session_id=...&after_seq=N: the push
// variant of event delivery. Batches are written as they arrive; the cursor
// semantics match the poll endpoint, so a client can reconnect with the last
// sequence it saw. Closing the socket never ends the session.
func ServeWs(registry *Registry, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Query("session_id")
		if idStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id required"})
			return
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
			return
		}
		cursor, err := strconv.ParseUint(c.DefaultQuery("after_seq", "0"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after_seq"})
			return
		}
		if _, err := registry.Get(id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// Reader exists only to notice the peer going away.
		go func() {
			defer cancel()
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(wsPongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			events, last, err := registry.Poll(ctx, id, cursor)
			if err != nil {
				if errors.Is(err, ErrSessionNotFound) {
					writeWs(conn, "session_ended", gin.H{"session_id": id})
				}
				return
			}
			if len(events) == 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
				continue
			}
			cursor = last
			if err := writeWs(conn, "transcript", eventBatch{SessionID: id.String(), Events: events, LastSeq: last}); err != nil {
				return
			}
		}
	}
}

func writeWs(conn *websocket.Conn, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(wsMessage{Event: event, Data: data})
}
