package controller

import (
	"net/http"

	apperrors "github.com/carpore/carpore-backend/internal/errors"
	"github.com/carpore/carpore-backend/internal/middleware"
	ws "github.com/carpore/carpore-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketController struct {
	hub      *ws.Hub
	upgrader *websocket.Upgrader
}

func NewWebSocketController(hub *ws.Hub, allowedOrigins []string) *WebSocketController {
	return &WebSocketController{
		hub:      hub,
		upgrader: ws.NewUpgrader(allowedOrigins),
	}
}

// Connect upgrades to a socket that receives checkout state and
// notification events. Browsers pass the access token as ?token= which is
// never logged.
// GET /api/v1/ws
func (ctrl *WebSocketController) Connect(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the handshake error
		log.Warn("Failed to upgrade to WebSocket", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}

	client := ws.NewClient(ctrl.hub, &ws.Conn{Conn: conn}, userID)
	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	log.Info("WebSocket connection established", map[string]interface{}{
		"user_id": userID,
	})
}

// Presence reports whether the signed-in user has an open socket
// GET /api/v1/ws/presence
func (ctrl *WebSocketController) Presence(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"online":   ctrl.hub.IsUserOnline(userID),
			"sessions": ctrl.hub.SessionCount(userID),
		},
	})
}
