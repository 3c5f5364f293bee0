// Package npc reacts to room document changes: it decides whether the
// room's NPC owes a reply, claims the work synchronously, and reveals
// the generated reply into the document token by token.
package npc

import (
	"context"
	"log"
	"time"

	"github.com/spatialchat/chatserver/internal/ai"
	"github.com/spatialchat/chatserver/internal/doc"
	"github.com/spatialchat/chatserver/internal/policy"
	"github.com/spatialchat/chatserver/internal/room"
)

// PlaceholderText fills a reply slot until the first token arrives.
const PlaceholderText = "..."

// EventPublisher fans room lifecycle events out to external
// consumers. Implementations must be safe for concurrent use.
type EventPublisher interface {
	PublishRoomEvent(ctx context.Context, roomID, event string) error
}

// Controller runs the reply state machine for a single invocation:
// Idle -> Deciding -> (NoOp | GeneratingText | GeneratingImage) -> Idle.
// All work is idempotent against the seenByNpc and
// imageDescriptionLoading guards, so repeated invocations for the same
// document state are no-ops.
type Controller struct {
	rooms           *room.Registry
	completer       ai.Completer
	transcriptLimit int

	// genTimeout bounds one generation attempt; zero disables the
	// bound.
	genTimeout time.Duration

	events EventPublisher
}

func NewController(rooms *room.Registry, completer ai.Completer, transcriptLimit int, genTimeout time.Duration) *Controller {
	if transcriptLimit <= 0 {
		transcriptLimit = policy.DefaultTranscriptLimit
	}
	return &Controller{
		rooms:           rooms,
		completer:       completer,
		transcriptLimit: transcriptLimit,
		genTimeout:      genTimeout,
	}
}

// SetEventPublisher wires an optional external event sink.
func (c *Controller) SetEventPublisher(p EventPublisher) { c.events = p }

// React handles one document-change notification. It claims any owed
// work synchronously (placeholder append plus guard flag) before the
// streaming call suspends, which is what keeps one room to one
// in-flight generation.
func (c *Controller) React(ctx context.Context, roomID string, d *doc.Document) error {
	rm, ok := c.rooms.Get(roomID)
	if !ok || rm.Npc == nil {
		return nil
	}

	snap := d.Snapshot()
	decision := policy.Evaluate(rm.Npc, snap, c.transcriptLimit)

	switch decision.Kind {
	case policy.NoReply:
		if n := len(snap.Messages); n > 0 {
			d.MarkSeenBySeq(snap.Messages[n-1].Seq)
		}
		return nil

	case policy.ImageReply:
		image, claimed := d.ClaimImage()
		if !claimed {
			// Another invocation got there first.
			return nil
		}
		seq := c.appendPlaceholder(d, rm.Npc)

		err := c.consume(ctx, d, seq, func(gctx context.Context) <-chan ai.Event {
			return c.completer.StreamImage(gctx, image, decision.Context)
		})

		d.SetTyping(false)
		d.SetImageLoading(false)
		if err != nil {
			log.Printf("[NpcController] image reply failed room_id=%s err=%v", roomID, err)
			c.publish(ctx, roomID, "reply_failed")
			return err
		}
		c.publish(ctx, roomID, "reply_completed")
		return nil

	case policy.TextReply:
		trigger := snap.Messages[len(snap.Messages)-1].Seq
		seq := c.appendPlaceholder(d, rm.Npc)
		d.MarkSeenBySeq(trigger)

		err := c.consume(ctx, d, seq, func(gctx context.Context) <-chan ai.Event {
			return c.completer.StreamChat(gctx, decision.Transcript)
		})

		d.SetTyping(false)
		if err != nil {
			log.Printf("[NpcController] text reply failed room_id=%s err=%v", roomID, err)
			c.publish(ctx, roomID, "reply_failed")
			return err
		}
		c.publish(ctx, roomID, "reply_completed")
		return nil
	}

	return nil
}

// appendPlaceholder appends the reply slot and returns its sequence
// number. It is born seenByNpc so a concurrent invocation that wakes
// before the first token sees an already-handled tail and no-ops.
func (c *Controller) appendPlaceholder(d *doc.Document, n *room.Npc) uint64 {
	_, seq := d.Push(doc.Message{
		UserID:    n.UserID,
		Name:      n.UserID,
		Initials:  n.Name,
		IsNpc:     true,
		Text:      PlaceholderText,
		SeenByNpc: true,
	})
	return seq
}

// consume drains one event stream into the placeholder, addressed by
// sequence number so a concurrent client delete cannot redirect tokens
// into a shifted entry. On failure the placeholder keeps whatever
// partial text was streamed; no compensating delete happens.
func (c *Controller) consume(ctx context.Context, d *doc.Document, seq uint64, start func(context.Context) <-chan ai.Event) error {
	gctx := ctx
	if c.genTimeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, c.genTimeout)
		defer cancel()
	}

	for ev := range start(gctx) {
		switch ev.Kind {
		case ai.EventStarted:
			d.SetTextBySeq(seq, "")
			d.SetTyping(true)
		case ai.EventToken:
			d.AppendTextBySeq(seq, ev.Token)
		case ai.EventCompleted:
			return nil
		case ai.EventFailed:
			return ev.Err
		}
	}
	return nil
}

func (c *Controller) publish(ctx context.Context, roomID, event string) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishRoomEvent(ctx, roomID, event); err != nil {
		log.Printf("[NpcController] publish failed room_id=%s event=%s err=%v", roomID, event, err)
	}
}
