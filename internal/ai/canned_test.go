package ai

import (
	"context"
	"strings"
	"testing"
)

func TestCannedProvider_ReplaysApologyExactly(t *testing.T) {
	p := &CannedProvider{Message: MissingCredentialMessage}

	var (
		started   int
		completed int
		b         strings.Builder
	)
	for ev := range p.StreamChat(context.Background(), nil) {
		switch ev.Kind {
		case EventStarted:
			started++
			if b.Len() > 0 {
				t.Fatalf("Started fired after tokens")
			}
		case EventToken:
			if started == 0 {
				t.Fatalf("token before Started")
			}
			b.WriteString(ev.Token)
		case EventCompleted:
			completed++
		case EventFailed:
			t.Fatalf("unexpected failure: %v", ev.Err)
		}
	}

	if started != 1 {
		t.Fatalf("expected exactly one Started, got %d", started)
	}
	if completed != 1 {
		t.Fatalf("expected exactly one Completed, got %d", completed)
	}
	if got := b.String(); got != MissingCredentialMessage {
		t.Fatalf("concatenated tokens != apology:\n got: %q\nwant: %q", got, MissingCredentialMessage)
	}
}

func TestCannedProvider_ImagePathUsesSameContract(t *testing.T) {
	p := &CannedProvider{Message: "short message"}

	var tokens []string
	for ev := range p.StreamImage(context.Background(), "data:x", "ctx") {
		if ev.Kind == EventToken {
			tokens = append(tokens, ev.Token)
		}
	}
	if got := strings.Join(tokens, ""); got != "short message" {
		t.Fatalf("unexpected replay: %q", got)
	}
}

func TestNewCompleter_DegradesWithoutCredential(t *testing.T) {
	c := NewCompleter("", "", "", "")
	if _, ok := c.(*CannedProvider); !ok {
		t.Fatalf("expected canned provider without credential, got %T", c)
	}

	c = NewCompleter("", "sk-test", "", "")
	if _, ok := c.(*OpenAIProvider); !ok {
		t.Fatalf("expected openai provider with credential, got %T", c)
	}
}
