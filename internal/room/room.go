package room

// Npc is a prompt-driven automated participant attached to a room.
type Npc struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// Room is a static chat channel definition. The set of rooms is fixed
// at process start and read-only afterwards.
type Room struct {
	RoomID   string `json:"roomId"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Npc      *Npc   `json:"npc"`
}

// Registry is an immutable room lookup built once at startup.
type Registry struct {
	ordered []Room
	byID    map[string]Room
}

func NewRegistry(rooms []Room) *Registry {
	r := &Registry{
		ordered: make([]Room, len(rooms)),
		byID:    make(map[string]Room, len(rooms)),
	}
	copy(r.ordered, rooms)
	for _, rm := range r.ordered {
		r.byID[rm.RoomID] = rm
	}
	return r
}

// Get looks a room up by id.
func (r *Registry) Get(roomID string) (Room, bool) {
	rm, ok := r.byID[roomID]
	return rm, ok
}

// List returns all rooms in their configured order.
func (r *Registry) List() []Room {
	out := make([]Room, len(r.ordered))
	copy(out, r.ordered)
	return out
}

func (r *Registry) Len() int { return len(r.ordered) }
