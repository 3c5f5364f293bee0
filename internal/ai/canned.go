package ai

import (
	"context"
	"strings"
	"time"
)

// MissingCredentialMessage is typed out to the room when no backend
// credential is configured.
const MissingCredentialMessage = "Oops! I can’t process your request. Please make sure you have set up your OPENAI_API_KEY correctly. See README.md for instructions."

const defaultTokenInterval = 32 * time.Millisecond

// CannedProvider replays a fixed message token-by-token through the
// normal event contract, so callers of a degraded backend need no
// special-case branch.
type CannedProvider struct {
	Message  string
	Interval time.Duration
}

func NewCannedProvider(message string) *CannedProvider {
	if message == "" {
		message = MissingCredentialMessage
	}
	return &CannedProvider{Message: message, Interval: defaultTokenInterval}
}

func (p *CannedProvider) StreamChat(ctx context.Context, _ []Message) <-chan Event {
	return p.replay(ctx)
}

func (p *CannedProvider) StreamImage(ctx context.Context, _ string, _ string) <-chan Event {
	return p.replay(ctx)
}

func (p *CannedProvider) replay(ctx context.Context) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		events <- Event{Kind: EventStarted}

		words := strings.Split(p.Message, " ")
		for i, w := range words {
			if i < len(words)-1 {
				w += " "
			}
			select {
			case <-ctx.Done():
				events <- Event{Kind: EventFailed, Err: &GenerationError{Err: ctx.Err()}}
				return
			case events <- Event{Kind: EventToken, Token: w}:
			}
			if p.Interval > 0 {
				select {
				case <-ctx.Done():
					events <- Event{Kind: EventFailed, Err: &GenerationError{Err: ctx.Err()}}
					return
				case <-time.After(p.Interval):
				}
			}
		}
		events <- Event{Kind: EventCompleted}
	}()

	return events
}

// NewCompleter picks the real provider when a credential is present
// and the canned simulator otherwise. Credential absence is a handled
// condition, never a startup failure.
func NewCompleter(baseURL, apiKey, model, visionModel string) Completer {
	if strings.TrimSpace(apiKey) == "" {
		return NewCannedProvider(MissingCredentialMessage)
	}
	return NewOpenAIProvider(baseURL, apiKey, model, visionModel)
}
