package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/ytfetch-go/internal/app"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventsHandler streams the status events of one download over a websocket
type EventsHandler struct {
	downloadMgr *app.DownloadManager
	logger      *zap.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(downloadMgr *app.DownloadManager, log *zap.Logger) *EventsHandler {
	return &EventsHandler{
		downloadMgr: downloadMgr,
		logger:      log,
	}
}

// HandleWebSocket handles GET /api/v1/downloads/:id/events. Every status
// event is sent as one JSON text message, earlier events first. The server
// closes the connection after the final event.
func (h *EventsHandler) HandleWebSocket(c *gin.Context) {
	id := c.Param("id")

	sub, err := h.downloadMgr.Subscribe(id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("Event stream connected",
		zap.String("id", id),
		zap.String("remote_addr", c.Request.RemoteAddr))

	// read from the client only to notice it going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "download finished")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("Failed to marshal status event", zap.Error(err))
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("Failed to send status event", zap.String("id", id), zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
