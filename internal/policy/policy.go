// Package policy decides whether a room owes an automated reply and,
// when it does, builds the transcript for the generation backend. It
// is pure: it reads a document snapshot and never mutates anything,
// so running it twice on the same snapshot yields the same decision.
package policy

import (
	"strings"

	"github.com/spatialchat/chatserver/internal/ai"
	"github.com/spatialchat/chatserver/internal/doc"
	"github.com/spatialchat/chatserver/internal/room"
)

// DefaultTranscriptLimit caps the number of log entries sent to the
// backend, oldest trimmed first.
const DefaultTranscriptLimit = 100

// MentionToken gates replies for NPCs whose user id contains "bot".
const MentionToken = "@bot"

const mentionGateMarker = "bot"

type Kind int

const (
	// NoReply: nothing is owed for the current document.
	NoReply Kind = iota
	// TextReply: the newest unseen message earned a streamed text reply.
	TextReply
	// ImageReply: a staged image is waiting for a description.
	ImageReply
)

// Decision is the policy outcome. Transcript is set for TextReply;
// Image and Context for ImageReply.
type Decision struct {
	Kind       Kind
	Transcript []ai.Message
	Image      string
	Context    string
}

// Evaluate inspects a room snapshot and returns the owed reply, if
// any. Image work takes priority over text and the two are mutually
// exclusive: while a description is loading no text reply is owed.
func Evaluate(npc *room.Npc, snap doc.Snapshot, limit int) Decision {
	if npc == nil {
		return Decision{Kind: NoReply}
	}

	if snap.State.Image != "" && !snap.State.ImageDescriptionLoading {
		return Decision{
			Kind:    ImageReply,
			Image:   snap.State.Image,
			Context: imageContext(npc, snap.State.UserPrompt),
		}
	}

	if len(snap.Messages) == 0 {
		return Decision{Kind: NoReply}
	}
	last := snap.Messages[len(snap.Messages)-1]
	if last.SeenByNpc || snap.State.ImageDescriptionLoading {
		return Decision{Kind: NoReply}
	}

	if MentionGated(npc) && !strings.Contains(last.Text, MentionToken) {
		return Decision{Kind: NoReply}
	}

	return Decision{
		Kind:       TextReply,
		Transcript: BuildTranscript(npc, snap.Messages, snap.State.UserPrompt, limit),
	}
}

// MentionGated reports whether the NPC only replies when addressed via
// the mention token.
func MentionGated(npc *room.Npc) bool {
	return npc != nil && strings.Contains(npc.UserID, mentionGateMarker)
}

// BuildTranscript maps the message log into backend turns: NPC entries
// become assistant turns, everything else user turns. The most recent
// limit entries are kept oldest-first, with exactly one system turn
// prepended carrying the persona prompt, formatting instructions and
// the room's user prompt.
func BuildTranscript(npc *room.Npc, messages []doc.Message, userPrompt string, limit int) []ai.Message {
	if limit <= 0 {
		limit = DefaultTranscriptLimit
	}

	start := 0
	if len(messages) > limit {
		start = len(messages) - limit
	}

	out := make([]ai.Message, 0, len(messages)-start+1)
	out = append(out, ai.Message{
		Role:    ai.RoleSystem,
		Name:    "bot",
		Content: systemContent(npc.Prompt, userPrompt),
	})
	for _, m := range messages[start:] {
		role := ai.RoleUser
		if m.IsNpc {
			role = ai.RoleAssistant
		}
		out = append(out, ai.Message{Role: role, Content: m.Text, Name: m.Name})
	}
	return out
}

func systemContent(prompt, userPrompt string) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\nFormat your response to the above in markdown. Use the metric system over imperial where possible.")
	if userPrompt != "" {
		b.WriteString(" ")
		b.WriteString(userPrompt)
	}
	return b.String()
}

func imageContext(npc *room.Npc, userPrompt string) string {
	if userPrompt == "" {
		return npc.Prompt
	}
	return npc.Prompt + " " + userPrompt
}
