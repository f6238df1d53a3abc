package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"denuncia/backend/internal/livefeed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is not checked; the feed requires a staff token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades an authenticated staff request to the live feed.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := livefeed.NewWebSocketClient(h.Hub, conn, c.GetUint(ctxStaffID), h.logger)
	if err := h.Hub.Register(c.Request.Context(), client); err != nil {
		h.logger.Warn("live feed unavailable", "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "feed unavailable"))
		_ = conn.Close()
	}
}
