// Package ws is the transport half of the synchronization layer: each
// room gets a hub that applies client operations to the shared
// document and pushes a full document snapshot to every connection
// whenever the document changes. Merge semantics stay with the
// document; the hub only serializes and ships.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/spatialchat/chatserver/internal/doc"
	"github.com/spatialchat/chatserver/internal/npc"
	"github.com/spatialchat/chatserver/internal/store/redisstore"
)

// Hub tracks one roomHub per active room.
type Hub struct {
	manager  *npc.Manager
	presence *redisstore.Store
	events   npc.EventPublisher

	mu    sync.Mutex
	rooms map[string]*roomHub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHub(manager *npc.Manager, presence *redisstore.Store) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		manager:  manager,
		presence: presence,
		rooms:    make(map[string]*roomHub),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetEventPublisher wires an optional external event sink.
func (h *Hub) SetEventPublisher(p npc.EventPublisher) { h.events = p }

func (h *Hub) room(roomID string) (*roomHub, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rh, ok := h.rooms[roomID]; ok {
		return rh, nil
	}

	d, err := h.manager.Open(roomID)
	if err != nil {
		return nil, err
	}

	rh := &roomHub{
		roomID:     roomID,
		doc:        d,
		hub:        h,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
	h.rooms[roomID] = rh
	h.wg.Add(1)
	go rh.run(h.ctx, &h.wg)
	return rh, nil
}

func (h *Hub) Shutdown() {
	h.cancel()
	h.wg.Wait()
}

// roomHub fans document snapshots out to the room's connections.
type roomHub struct {
	roomID string
	doc    *doc.Document
	hub    *Hub

	clients    map[*client]bool
	register   chan *client
	unregister chan *client
}

func (rh *roomHub) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	changes := rh.doc.Subscribe()

	for {
		select {
		case <-ctx.Done():
			for c := range rh.clients {
				close(c.send)
				delete(rh.clients, c)
			}
			return

		case c := <-rh.register:
			rh.clients[c] = true
			// Fresh connections get the current document immediately.
			c.enqueue(rh.snapshotPayload())
			rh.presenceJoin(ctx)

		case c := <-rh.unregister:
			if _, ok := rh.clients[c]; ok {
				delete(rh.clients, c)
				close(c.send)
				rh.presenceLeave(ctx)
			}

		case <-changes:
			payload := rh.snapshotPayload()
			for c := range rh.clients {
				c.enqueue(payload)
			}
		}
	}
}

type docUpdate struct {
	Type     string        `json:"type"`
	Messages []doc.Message `json:"messages"`
	State    doc.State     `json:"state"`
}

func (rh *roomHub) snapshotPayload() []byte {
	snap := rh.doc.Snapshot()
	b, err := json.Marshal(docUpdate{Type: "doc", Messages: snap.Messages, State: snap.State})
	if err != nil {
		log.Printf("[WsHub] snapshot marshal failed room_id=%s err=%v", rh.roomID, err)
		return []byte(`{"type":"doc","messages":[],"state":{}}`)
	}
	return b
}

func (rh *roomHub) presenceJoin(ctx context.Context) {
	if rh.hub.presence == nil {
		return
	}
	if err := rh.hub.presence.Join(ctx, rh.roomID); err != nil {
		log.Printf("[WsHub] presence join failed room_id=%s err=%v", rh.roomID, err)
	}
}

func (rh *roomHub) presenceLeave(ctx context.Context) {
	if rh.hub.presence == nil {
		return
	}
	if err := rh.hub.presence.Leave(ctx, rh.roomID); err != nil {
		log.Printf("[WsHub] presence leave failed room_id=%s err=%v", rh.roomID, err)
	}
}

// clientOp is one operation submitted by a connected client.
type clientOp struct {
	Type     string `json:"type"` // "message" | "edit" | "delete" | "image"
	Text     string `json:"text,omitempty"`
	Index    int    `json:"index,omitempty"`
	UserID   string `json:"userId,omitempty"`
	Name     string `json:"name,omitempty"`
	Initials string `json:"initials,omitempty"`
	Image    string `json:"image,omitempty"`
}

func (rh *roomHub) apply(op clientOp) {
	switch op.Type {
	case "message":
		rh.doc.Push(doc.Message{
			UserID:   op.UserID,
			Name:     op.Name,
			Initials: op.Initials,
			Text:     op.Text,
		})
		rh.publish("message_appended")
	case "edit":
		rh.doc.SetText(op.Index, op.Text)
	case "delete":
		rh.doc.Delete(op.Index)
	case "image":
		rh.doc.SetImage(op.Image)
	default:
		log.Printf("[WsHub] unknown op room_id=%s type=%q", rh.roomID, op.Type)
	}
}

func (rh *roomHub) publish(event string) {
	if rh.hub.events == nil {
		return
	}
	if err := rh.hub.events.PublishRoomEvent(rh.hub.ctx, rh.roomID, event); err != nil {
		log.Printf("[WsHub] publish failed room_id=%s event=%s err=%v", rh.roomID, event, err)
	}
}
