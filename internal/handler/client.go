package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pettracker/internal/dto"
	"pettracker/internal/logger"
	"pettracker/internal/service/eventbus"
	ws "pettracker/internal/service/websocket"
)

// NewUpgrader accepts browser connections from the allowed origins only.
// Requests without an Origin header (non-browser clients) are accepted.
func NewUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range allowed {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

// ViewWebsocketHandler upgrades the connection and registers it with the
// hub; the handler returns when the viewer disconnects. The optional
// ?topics=a,b query limits the events forwarded to the viewer.
func ViewWebsocketHandler(hub *ws.HubService, upgrader websocket.Upgrader, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		topics, err := eventbus.ParseTopicList(c.Query("topics"))
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
			return
		}

		connection, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error("WebSocket upgrade error: %v", err)
			return
		}

		client, err := hub.Register(c.Request.Context(), connection, topics...)
		if err != nil {
			log.Warning("Rejected viewer: %v", err)
			connection.Close()
			return
		}

		log.Info("Viewer connected")
		client.ReadPump()
		log.Info("Viewer disconnected")
	}
}
