package npc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spatialchat/chatserver/internal/ai"
	"github.com/spatialchat/chatserver/internal/doc"
	"github.com/spatialchat/chatserver/internal/room"
)

type fakeCompleter struct {
	mu             sync.Mutex
	chatCalls      int
	imageCalls     int
	lastTranscript []ai.Message
	lastImage      string
	lastContext    string

	tokens     []string
	failErr    error         // emitted after tokens when set
	hold       chan struct{} // when set, stream stays open until closed
	lateTokens []string      // emitted after hold releases
}

func (f *fakeCompleter) StreamChat(ctx context.Context, messages []ai.Message) <-chan ai.Event {
	f.mu.Lock()
	f.chatCalls++
	f.lastTranscript = append([]ai.Message(nil), messages...)
	f.mu.Unlock()
	return f.stream(ctx)
}

func (f *fakeCompleter) StreamImage(ctx context.Context, image string, personaContext string) <-chan ai.Event {
	f.mu.Lock()
	f.imageCalls++
	f.lastImage = image
	f.lastContext = personaContext
	f.mu.Unlock()
	return f.stream(ctx)
}

func (f *fakeCompleter) stream(ctx context.Context) <-chan ai.Event {
	events := make(chan ai.Event, 16)
	go func() {
		defer close(events)
		events <- ai.Event{Kind: ai.EventStarted}
		for _, tok := range f.tokens {
			events <- ai.Event{Kind: ai.EventToken, Token: tok}
		}
		if f.hold != nil {
			select {
			case <-f.hold:
			case <-ctx.Done():
			}
		}
		for _, tok := range f.lateTokens {
			events <- ai.Event{Kind: ai.EventToken, Token: tok}
		}
		if f.failErr != nil {
			events <- ai.Event{Kind: ai.EventFailed, Err: f.failErr}
			return
		}
		events <- ai.Event{Kind: ai.EventCompleted}
	}()
	return events
}

func (f *fakeCompleter) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatCalls, f.imageCalls
}

func testRegistry() *room.Registry {
	return room.NewRegistry([]room.Room{
		{
			RoomID: "clojure_room",
			Title:  "Clojure Room",
			Npc:    &room.Npc{UserID: "npc-bot-x", Name: "👷", Prompt: "You are a Clojure expert."},
		},
		{
			RoomID: "teaching_room",
			Title:  "Teaching Room",
			Npc:    &room.Npc{UserID: "npc-teacher", Name: "👨‍🏫", Prompt: "You are a teacher."},
		},
		{RoomID: "quiet_room", Title: "Quiet Room"},
	})
}

func pushUser(d *doc.Document, text string) {
	d.Push(doc.Message{UserID: "u1", Name: "alice", Initials: "AL", Text: text})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestReact_MentionScenario(t *testing.T) {
	fake := &fakeCompleter{tokens: []string{"2+2 ", "equals ", "4"}}
	ctrl := NewController(testRegistry(), fake, 0, 0)

	d := doc.New()
	pushUser(d, "@bot what is 2+2?")

	if err := ctrl.React(context.Background(), "clojure_room", d); err != nil {
		t.Fatalf("react: %v", err)
	}

	if d.Len() != 2 {
		t.Fatalf("expected trigger plus one reply, got %d messages", d.Len())
	}
	trigger, _ := d.Message(0)
	if !trigger.SeenByNpc {
		t.Fatalf("trigger must be marked seen")
	}
	reply, _ := d.Message(1)
	if !reply.IsNpc || !reply.SeenByNpc {
		t.Fatalf("reply flags wrong: %+v", reply)
	}
	if reply.Text != "2+2 equals 4" {
		t.Fatalf("reply must equal the streamed tokens, got %q", reply.Text)
	}
	if reply.UserID != "npc-bot-x" || reply.Name != "npc-bot-x" || reply.Initials != "👷" {
		t.Fatalf("reply identity wrong: %+v", reply)
	}
	if d.State().IsTyping {
		t.Fatalf("isTyping must be cleared after the stream ends")
	}

	if fake.lastTranscript[0].Role != ai.RoleSystem {
		t.Fatalf("transcript must start with a system turn")
	}
	last := fake.lastTranscript[len(fake.lastTranscript)-1]
	if last.Role != ai.RoleUser || last.Content != "@bot what is 2+2?" {
		t.Fatalf("transcript must end with the trigger, got %+v", last)
	}
}

func TestReact_IdempotentAfterReply(t *testing.T) {
	fake := &fakeCompleter{tokens: []string{"ok"}}
	ctrl := NewController(testRegistry(), fake, 0, 0)

	d := doc.New()
	pushUser(d, "@bot hello")

	for i := 0; i < 4; i++ {
		if err := ctrl.React(context.Background(), "clojure_room", d); err != nil {
			t.Fatalf("react %d: %v", i, err)
		}
	}

	if d.Len() != 2 {
		t.Fatalf("repeated invocations appended extra replies: %d messages", d.Len())
	}
	if chat, _ := fake.calls(); chat != 1 {
		t.Fatalf("expected one generation, got %d", chat)
	}
}

func TestReact_NoMentionMarksSeenWithoutReply(t *testing.T) {
	fake := &fakeCompleter{tokens: []string{"x"}}
	ctrl := NewController(testRegistry(), fake, 0, 0)

	d := doc.New()
	pushUser(d, "hello")

	if err := ctrl.React(context.Background(), "clojure_room", d); err != nil {
		t.Fatalf("react: %v", err)
	}

	if d.Len() != 1 {
		t.Fatalf("no reply expected without a mention")
	}
	m, _ := d.Message(0)
	if !m.SeenByNpc {
		t.Fatalf("handled message must be marked seen")
	}
	if chat, _ := fake.calls(); chat != 0 {
		t.Fatalf("backend must not be called")
	}
}

func TestReact_RoomWithoutNpc(t *testing.T) {
	fake := &fakeCompleter{tokens: []string{"x"}}
	ctrl := NewController(testRegistry(), fake, 0, 0)

	d := doc.New()
	pushUser(d, "anyone here?")

	if err := ctrl.React(context.Background(), "quiet_room", d); err != nil {
		t.Fatalf("react: %v", err)
	}
	if d.Len() != 1 {
		t.Fatalf("npc-less room must stay untouched")
	}
	m, _ := d.Message(0)
	if m.SeenByNpc {
		t.Fatalf("npc-less room must not mark messages seen")
	}
}

func TestReact_ImageScenario(t *testing.T) {
	fake := &fakeCompleter{tokens: []string{"A ", "photo"}}
	ctrl := NewController(testRegistry(), fake, 0, 0)

	d := doc.New()
	d.SetUserPrompt("be poetic")
	d.SetImage("data:image/png;base64,abc")

	if err := ctrl.React(context.Background(), "teaching_room", d); err != nil {
		t.Fatalf("react: %v", err)
	}

	st := d.State()
	if st.Image != "" {
		t.Fatalf("image must be consumed")
	}
	if st.ImageDescriptionLoading || st.IsTyping {
		t.Fatalf("flags must be cleared: %+v", st)
	}
	if d.Len() != 1 {
		t.Fatalf("expected exactly one placeholder, got %d", d.Len())
	}
	reply, _ := d.Message(0)
	if reply.Text != "A photo" {
		t.Fatalf("placeholder not filled: %q", reply.Text)
	}

	if _, img := fake.calls(); img != 1 {
		t.Fatalf("expected one image generation, got %d", img)
	}
	if fake.lastImage != "data:image/png;base64,abc" {
		t.Fatalf("wrong image payload: %q", fake.lastImage)
	}
	if fake.lastContext != "You are a teacher. be poetic" {
		t.Fatalf("wrong persona context: %q", fake.lastContext)
	}
}

func TestReact_FailureKeepsPartialTextAndClearsFlags(t *testing.T) {
	wantErr := errors.New("backend down")
	fake := &fakeCompleter{tokens: []string{"partial "}, failErr: wantErr}
	ctrl := NewController(testRegistry(), fake, 0, 0)

	d := doc.New()
	pushUser(d, "@bot hello")

	err := ctrl.React(context.Background(), "clojure_room", d)
	if !errors.Is(err, wantErr) {
		t.Fatalf("failure must propagate, got %v", err)
	}

	reply, _ := d.Message(1)
	if reply.Text != "partial " {
		t.Fatalf("partial text must be retained, got %q", reply.Text)
	}
	if d.State().IsTyping {
		t.Fatalf("isTyping must be cleared on failure")
	}

	// The room is not stuck: a later message triggers a fresh attempt.
	fake.failErr = nil
	fake.tokens = []string{"recovered"}
	pushUser(d, "@bot again")
	if err := ctrl.React(context.Background(), "clojure_room", d); err != nil {
		t.Fatalf("retry: %v", err)
	}
	last, _ := d.Message(d.Len() - 1)
	if last.Text != "recovered" {
		t.Fatalf("retry did not generate: %q", last.Text)
	}
}

func TestReact_ImageFailureClearsLoading(t *testing.T) {
	fake := &fakeCompleter{failErr: errors.New("vision down")}
	ctrl := NewController(testRegistry(), fake, 0, 0)

	d := doc.New()
	d.SetImage("data:x")

	if err := ctrl.React(context.Background(), "teaching_room", d); err == nil {
		t.Fatalf("expected failure to propagate")
	}
	st := d.State()
	if st.ImageDescriptionLoading || st.IsTyping {
		t.Fatalf("flags stuck after failure: %+v", st)
	}
}

func TestReact_TypingTogglesDuringStream(t *testing.T) {
	hold := make(chan struct{})
	fake := &fakeCompleter{tokens: []string{"thinking"}, hold: hold}
	ctrl := NewController(testRegistry(), fake, 0, 0)

	d := doc.New()
	pushUser(d, "@bot hello")

	done := make(chan error, 1)
	go func() { done <- ctrl.React(context.Background(), "clojure_room", d) }()

	waitFor(t, "isTyping to rise", func() bool { return d.State().IsTyping })
	close(hold)

	if err := <-done; err != nil {
		t.Fatalf("react: %v", err)
	}
	if d.State().IsTyping {
		t.Fatalf("isTyping must fall after completion")
	}
}

func TestReact_DeleteDuringStreamKeepsReplyIntact(t *testing.T) {
	hold := make(chan struct{})
	fake := &fakeCompleter{tokens: []string{"A "}, hold: hold, lateTokens: []string{"B"}}
	ctrl := NewController(testRegistry(), fake, 0, 0)

	d := doc.New()
	pushUser(d, "@bot describe something")

	done := make(chan error, 1)
	go func() { done <- ctrl.React(context.Background(), "clojure_room", d) }()

	waitFor(t, "first token", func() bool {
		m, ok := d.Message(1)
		return ok && m.Text == "A "
	})

	// A client deletes the trigger mid-stream; the reply shifts from
	// index 1 to 0 and the remaining tokens must still land in it.
	if !d.Delete(0) {
		t.Fatalf("delete failed")
	}
	close(hold)

	if err := <-done; err != nil {
		t.Fatalf("react: %v", err)
	}
	if d.Len() != 1 {
		t.Fatalf("expected only the reply to remain, got %d messages", d.Len())
	}
	reply, _ := d.Message(0)
	if reply.Text != "A B" {
		t.Fatalf("tokens lost or misrouted after delete: %q", reply.Text)
	}
}

func TestReact_GenerationTimeout(t *testing.T) {
	hold := make(chan struct{}) // never closed; only the deadline ends the stream
	fake := &fakeCompleter{hold: hold, failErr: errors.New("canceled")}
	ctrl := NewController(testRegistry(), fake, 0, 50*time.Millisecond)

	d := doc.New()
	pushUser(d, "@bot hello")

	err := ctrl.React(context.Background(), "clojure_room", d)
	if err == nil {
		t.Fatalf("expected the timeout to surface as a failure")
	}
	if d.State().IsTyping {
		t.Fatalf("isTyping stuck after timeout")
	}
}
