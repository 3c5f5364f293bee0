package handlers

import (
	"github.com/spatialchat/chatserver/internal/npc"
	"github.com/spatialchat/chatserver/internal/room"
	"github.com/spatialchat/chatserver/internal/store/redisstore"
	"github.com/spatialchat/chatserver/internal/ws"
)

type Handler struct {
	Rooms    *room.Registry
	Manager  *npc.Manager
	WsHub    *ws.Hub
	Presence *redisstore.Store // nil when redis is not configured
}

func NewHandler(rooms *room.Registry, manager *npc.Manager, hub *ws.Hub, presence *redisstore.Store) *Handler {
	return &Handler{
		Rooms:    rooms,
		Manager:  manager,
		WsHub:    hub,
		Presence: presence,
	}
}
