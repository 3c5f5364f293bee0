// Package doc holds the shared room document: an ordered message log
// plus a small per-room state map, mutated by connected clients and by
// the NPC reaction controller. Conflict resolution across clients is
// the synchronization layer's job; within one server process every
// mutation goes through a Document, which serializes access and emits
// a coalesced change signal.
package doc

import "sync"

// Message is one entry in a room's shared message log. Ordering is
// insertion order; the index in the log is the only sequence.
type Message struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Initials  string `json:"initials"`
	IsNpc     bool   `json:"isNpc"`
	Text      string `json:"text"`
	SeenByNpc bool   `json:"seenByNpc"`

	// Seq identifies the entry across the index shifts a delete
	// causes. Assigned by the document, never reused, and not part
	// of the wire or persisted payload.
	Seq uint64 `json:"-"`
}

// State is the room-wide ephemeral state. Fields are last-writer-wins.
type State struct {
	IsTyping                bool   `json:"isTyping"`
	Image                   string `json:"image,omitempty"`
	ImageDescriptionLoading bool   `json:"imageDescriptionLoading"`
	UserPrompt              string `json:"userPrompt,omitempty"`
}

// Snapshot is a point-in-time copy of a document, safe to read without
// holding the document lock.
type Snapshot struct {
	Messages []Message `json:"messages"`
	State    State     `json:"state"`
}

// Document is the in-memory shared room document. All accessors are
// safe for concurrent use; every mutation raises the change signal on
// all subscriptions.
type Document struct {
	mu       sync.RWMutex
	messages []Message
	state    State
	nextSeq  uint64

	subMu sync.Mutex
	subs  []chan struct{}
}

func New() *Document {
	return &Document{}
}

// Restore builds a document from a persisted snapshot. No change
// signal is raised. Sequence numbers are reassigned; they do not
// survive persistence.
func Restore(snap Snapshot) *Document {
	d := New()
	d.messages = append(d.messages, snap.Messages...)
	for i := range d.messages {
		d.nextSeq++
		d.messages[i].Seq = d.nextSeq
	}
	d.state = snap.State
	return d
}

// Subscribe returns a coalesced change signal. At least one receive
// is possible after any logical mutation batch; rapid mutations fold
// into a single pending signal per subscriber.
func (d *Document) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	d.subMu.Lock()
	d.subs = append(d.subs, ch)
	d.subMu.Unlock()
	return ch
}

func (d *Document) notify() {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (d *Document) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	msgs := make([]Message, len(d.messages))
	copy(msgs, d.messages)
	return Snapshot{Messages: msgs, State: d.state}
}

func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.messages)
}

// Message returns a copy of the entry at index i.
func (d *Document) Message(i int) (Message, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i < 0 || i >= len(d.messages) {
		return Message{}, false
	}
	return d.messages[i], true
}

// Push appends a message and returns its index and the sequence
// number assigned to it. The index is the client-facing address; the
// sequence stays valid when deletes shift indices.
func (d *Document) Push(m Message) (int, uint64) {
	d.mu.Lock()
	d.nextSeq++
	m.Seq = d.nextSeq
	d.messages = append(d.messages, m)
	i := len(d.messages) - 1
	d.mu.Unlock()
	d.notify()
	return i, m.Seq
}

// indexOf locates an entry by sequence number. Callers hold d.mu.
// Scans from the tail since mutated entries are almost always recent.
func (d *Document) indexOf(seq uint64) int {
	for i := len(d.messages) - 1; i >= 0; i-- {
		if d.messages[i].Seq == seq {
			return i
		}
	}
	return -1
}

// SetText replaces the text of the entry at index i.
func (d *Document) SetText(i int, text string) bool {
	d.mu.Lock()
	if i < 0 || i >= len(d.messages) {
		d.mu.Unlock()
		return false
	}
	d.messages[i].Text = text
	d.mu.Unlock()
	d.notify()
	return true
}

// SetTextBySeq replaces the text of the entry with the given sequence
// number, wherever index shifts have moved it.
func (d *Document) SetTextBySeq(seq uint64, text string) bool {
	d.mu.Lock()
	i := d.indexOf(seq)
	if i < 0 {
		d.mu.Unlock()
		return false
	}
	d.messages[i].Text = text
	d.mu.Unlock()
	d.notify()
	return true
}

// AppendTextBySeq appends a token to the entry with the given sequence
// number. This is the live-typing reveal used while a reply streams
// in; seq addressing keeps the tokens landing in the reply slot even
// when a concurrent delete shifts the log.
func (d *Document) AppendTextBySeq(seq uint64, token string) bool {
	d.mu.Lock()
	i := d.indexOf(seq)
	if i < 0 {
		d.mu.Unlock()
		return false
	}
	d.messages[i].Text += token
	d.mu.Unlock()
	d.notify()
	return true
}

// MarkSeenBySeq flips seenByNpc on the entry with the given sequence
// number. Reports whether the flag actually changed.
func (d *Document) MarkSeenBySeq(seq uint64) bool {
	d.mu.Lock()
	i := d.indexOf(seq)
	if i < 0 || d.messages[i].SeenByNpc {
		d.mu.Unlock()
		return false
	}
	d.messages[i].SeenByNpc = true
	d.mu.Unlock()
	d.notify()
	return true
}

// Delete removes the entry at index i. Deleted entries are never
// resurrected; later indices shift down.
func (d *Document) Delete(i int) bool {
	d.mu.Lock()
	if i < 0 || i >= len(d.messages) {
		d.mu.Unlock()
		return false
	}
	d.messages = append(d.messages[:i], d.messages[i+1:]...)
	d.mu.Unlock()
	d.notify()
	return true
}

func (d *Document) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *Document) SetTyping(v bool) {
	d.mu.Lock()
	d.state.IsTyping = v
	d.mu.Unlock()
	d.notify()
}

// SetImage stages an uploaded image for description.
func (d *Document) SetImage(image string) {
	d.mu.Lock()
	d.state.Image = image
	d.mu.Unlock()
	d.notify()
}

// ClaimImage atomically consumes a staged image: it succeeds only when
// an image is present and no image description is already in flight,
// clearing the image and raising imageDescriptionLoading in one step.
// This is the mutual-exclusion gate between the two reply kinds.
func (d *Document) ClaimImage() (string, bool) {
	d.mu.Lock()
	if d.state.Image == "" || d.state.ImageDescriptionLoading {
		d.mu.Unlock()
		return "", false
	}
	img := d.state.Image
	d.state.Image = ""
	d.state.ImageDescriptionLoading = true
	d.mu.Unlock()
	d.notify()
	return img, true
}

func (d *Document) SetImageLoading(v bool) {
	d.mu.Lock()
	d.state.ImageDescriptionLoading = v
	d.mu.Unlock()
	d.notify()
}

func (d *Document) SetUserPrompt(p string) {
	d.mu.Lock()
	d.state.UserPrompt = p
	d.mu.Unlock()
	d.notify()
}
