package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"direct-chat/services"
)

// WSController upgrades authenticated requests to push channels.
func WSController(hub *services.Hub, tokens *services.TokenManager, upgrader *websocket.Upgrader) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		services.HandleWebSocket(ctx.Writer, ctx.Request, hub, tokens, upgrader)
	}
}
