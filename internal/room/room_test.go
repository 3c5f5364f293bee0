package room

import "testing"

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry(DefaultRooms())

	rm, ok := reg.Get("clojure_room")
	if !ok {
		t.Fatalf("clojure_room missing")
	}
	if rm.Npc == nil || rm.Npc.UserID != "npc-bot-clojure" {
		t.Fatalf("unexpected npc: %+v", rm.Npc)
	}

	if _, ok := reg.Get("no_such_room"); ok {
		t.Fatalf("unexpected hit for unknown id")
	}
}

func TestRegistry_ListPreservesOrder(t *testing.T) {
	rooms := []Room{
		{RoomID: "a", Title: "A"},
		{RoomID: "b", Title: "B"},
		{RoomID: "c", Title: "C"},
	}
	reg := NewRegistry(rooms)

	got := reg.List()
	if len(got) != 3 {
		t.Fatalf("expected 3 rooms, got %d", len(got))
	}
	for i, id := range []string{"a", "b", "c"} {
		if got[i].RoomID != id {
			t.Fatalf("order lost at %d: %q", i, got[i].RoomID)
		}
	}

	// Mutating the returned slice must not affect the registry.
	got[0].RoomID = "mutated"
	if again := reg.List(); again[0].RoomID != "a" {
		t.Fatalf("registry leaked internal storage")
	}
}

func TestDefaultRooms_EveryRoomHasUniqueID(t *testing.T) {
	rooms := DefaultRooms()
	seen := make(map[string]bool)
	for _, rm := range rooms {
		if seen[rm.RoomID] {
			t.Fatalf("duplicate room id %q", rm.RoomID)
		}
		seen[rm.RoomID] = true
	}
}
