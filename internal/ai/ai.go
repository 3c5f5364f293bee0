// Package ai wraps token-streaming completion backends behind a
// uniform event-stream contract: one Started event, zero or more Token
// events, then a terminal Completed or Failed event.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a completion transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type EventKind int

const (
	EventStarted EventKind = iota
	EventToken
	EventCompleted
	EventFailed
)

// Event is one element of a completion stream. Token is set only for
// EventToken; Err only for EventFailed.
type Event struct {
	Kind  EventKind
	Token string
	Err   error
}

// ErrMissingCredential marks a backend with no credential configured.
// Providers must surface it, not swallow it; the canned simulator is
// the caller-transparent degradation for it.
var ErrMissingCredential = errors.New("ai: missing credential")

// GenerationError wraps a transport or backend failure raised during a
// completion call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "ai: generation failed: " + e.Err.Error() }
func (e *GenerationError) Unwrap() error { return e.Err }

// Completer produces replies as event streams. The returned channel is
// closed after the terminal event.
type Completer interface {
	// StreamChat runs a pure-text chat completion over the transcript.
	StreamChat(ctx context.Context, messages []Message) <-chan Event

	// StreamImage runs an image-grounded completion: persona context
	// plus one user turn carrying the image payload.
	StreamImage(ctx context.Context, image string, personaContext string) <-chan Event
}

type CompleterFactory func(ctx context.Context) (Completer, error)

// Registry routes completer construction by provider name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]CompleterFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]CompleterFactory)}
}

func (r *Registry) Register(name string, f CompleterFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string) (Completer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx)
}
