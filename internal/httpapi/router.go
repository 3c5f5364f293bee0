package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spatialchat/chatserver/internal/common"
	"github.com/spatialchat/chatserver/internal/config"
	"github.com/spatialchat/chatserver/internal/httpapi/handlers"
	"github.com/spatialchat/chatserver/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/ping", h.Ping)

	r.GET("/rooms", h.ListRooms)
	r.GET("/rooms/:room_id/messages", h.GetRoomMessages)
	r.POST("/rooms/:room_id", h.PostRoomAction)
	r.GET("/rooms/:room_id/ws", h.RoomSocket)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.PUT("/rooms/:room_id/prompt", h.SetRoomPrompt)

	return r
}
