package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spatialchat/chatserver/internal/common"
	"github.com/spatialchat/chatserver/internal/npc"
)

// ListRooms returns the static room set, each with its live presence
// count when the presence store is available.
func (h *Handler) ListRooms(c *gin.Context) {
	rooms := h.Rooms.List()

	out := make([]gin.H, 0, len(rooms))
	for _, rm := range rooms {
		entry := gin.H{
			"roomId":   rm.RoomID,
			"title":    rm.Title,
			"subtitle": rm.Subtitle,
			"hasNpc":   rm.Npc != nil,
		}
		if h.Presence != nil {
			n, err := h.Presence.Count(c.Request.Context(), rm.RoomID)
			if err != nil {
				log.Printf("[Rooms] presence count failed room_id=%s err=%v", rm.RoomID, err)
			} else {
				entry["presence"] = n
			}
		}
		out = append(out, entry)
	}

	common.OK(c, http.StatusOK, gin.H{"rooms": out})
}

// GetRoomMessages dumps the room's current message log. Rooms that
// have never been opened have no document yet and return 404.
func (h *Handler) GetRoomMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	if _, ok := h.Rooms.Get(roomID); !ok {
		common.Fail(c, http.StatusNotFound, 40401, "room not found")
		return
	}

	d, ok := h.Manager.Get(roomID)
	if !ok {
		common.Fail(c, http.StatusNotFound, 40402, "no document yet")
		return
	}

	snap := d.Snapshot()
	c.JSON(http.StatusOK, snap.Messages)
}

type roomActionReq struct {
	Type string `json:"type" binding:"required"`
}

// PostRoomAction handles the control surface of a room. "stop"
// acknowledges and performs no further action; "askAi" is accepted
// but intentionally not wired to the reply flow.
func (h *Handler) PostRoomAction(c *gin.Context) {
	roomID := c.Param("room_id")
	if _, ok := h.Rooms.Get(roomID); !ok {
		common.Fail(c, http.StatusNotFound, 40401, "room not found")
		return
	}

	var req roomActionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	switch req.Type {
	case "stop":
		common.OK(c, http.StatusOK, gin.H{"stopped": true})
	case "askAi":
		common.OK(c, http.StatusAccepted, gin.H{"accepted": true})
	default:
		common.Fail(c, http.StatusBadRequest, 10002, "unsupported action")
	}
}

type setPromptReq struct {
	Prompt string `json:"prompt"`
}

// SetRoomPrompt updates the room's extra persona instructions. The
// route is bearer-token gated; this is the one privileged operation.
func (h *Handler) SetRoomPrompt(c *gin.Context) {
	roomID := c.Param("room_id")

	var req setPromptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	d, err := h.Manager.Open(roomID)
	if err != nil {
		if errors.Is(err, npc.ErrUnknownRoom) {
			common.Fail(c, http.StatusNotFound, 40401, "room not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	d.SetUserPrompt(req.Prompt)
	common.OK(c, http.StatusOK, gin.H{"roomId": roomID})
}

// RoomSocket upgrades the connection and joins the room's hub.
func (h *Handler) RoomSocket(c *gin.Context) {
	roomID := c.Param("room_id")
	if err := h.WsHub.Serve(c.Writer, c.Request, roomID); err != nil {
		if errors.Is(err, npc.ErrUnknownRoom) {
			common.Fail(c, http.StatusNotFound, 40401, "room not found")
			return
		}
		log.Printf("[Rooms] websocket upgrade failed room_id=%s err=%v", roomID, err)
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, http.StatusOK, gin.H{"pong": true})
}
