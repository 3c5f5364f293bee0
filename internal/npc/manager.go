package npc

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/spatialchat/chatserver/internal/doc"
	"github.com/spatialchat/chatserver/internal/room"
)

// ErrUnknownRoom is returned when a document is requested for a room
// id outside the static registry.
var ErrUnknownRoom = errors.New("npc: unknown room")

// SnapshotStore persists room documents across restarts. Nil-safe at
// the Manager level: without a store, documents are memory only.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, roomID string, snap doc.Snapshot) error
	LoadSnapshot(ctx context.Context, roomID string) (doc.Snapshot, bool, error)
}

// Manager owns one document and one reaction loop per active room.
// A room's loop is the only goroutine that runs the controller for
// that room, which is what makes the claim-before-suspend pattern in
// the controller race-free.
type Manager struct {
	rooms     *room.Registry
	ctrl      *Controller
	snapshots SnapshotStore

	mu   sync.RWMutex
	docs map[string]*doc.Document

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(rooms *room.Registry, ctrl *Controller, snapshots SnapshotStore) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		rooms:     rooms,
		ctrl:      ctrl,
		snapshots: snapshots,
		docs:      make(map[string]*doc.Document),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Get returns the live document for a room, without creating one.
func (m *Manager) Get(roomID string) (*doc.Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[roomID]
	return d, ok
}

// Open returns the room's document, creating it (and starting its
// reaction loop) on first use. A persisted snapshot is restored when
// available.
func (m *Manager) Open(roomID string) (*doc.Document, error) {
	if _, ok := m.rooms.Get(roomID); !ok {
		return nil, ErrUnknownRoom
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[roomID]; ok {
		return d, nil
	}

	d := doc.New()
	if m.snapshots != nil {
		snap, found, err := m.snapshots.LoadSnapshot(m.ctx, roomID)
		if err != nil {
			log.Printf("[NpcManager] snapshot load failed room_id=%s err=%v", roomID, err)
		} else if found {
			d = doc.Restore(snap)
		}
	}

	// Subscribe before the loop goroutine exists so a mutation landing
	// right after Open returns cannot slip past the first receive.
	changes := d.Subscribe()

	m.docs[roomID] = d
	m.wg.Add(1)
	go m.loop(roomID, d, changes)

	log.Printf("[NpcManager] room opened room_id=%s messages=%d", roomID, d.Len())
	return d, nil
}

// ActiveRooms returns the ids of rooms with a live document.
func (m *Manager) ActiveRooms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.docs))
	for id := range m.docs {
		out = append(out, id)
	}
	return out
}

func (m *Manager) loop(roomID string, d *doc.Document, changes <-chan struct{}) {
	defer m.wg.Done()

	// A restored snapshot may already carry unhandled work, and no
	// change signal will ever announce it.
	m.react(roomID, d)

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-changes:
			m.react(roomID, d)
		}
	}
}

func (m *Manager) react(roomID string, d *doc.Document) {
	if err := m.ctrl.React(m.ctx, roomID, d); err != nil {
		// Guard flags are already cleared; the room keeps operating
		// and a later change can retry.
		log.Printf("[NpcManager] reaction failed room_id=%s err=%v", roomID, err)
	}
	m.persist(roomID, d)
}

func (m *Manager) persist(roomID string, d *doc.Document) {
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.SaveSnapshot(m.ctx, roomID, d.Snapshot()); err != nil {
		log.Printf("[NpcManager] snapshot save failed room_id=%s err=%v", roomID, err)
	}
}

// Shutdown stops all reaction loops and writes a final snapshot per
// room.
func (m *Manager) Shutdown(ctx context.Context) {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshots != nil {
		for roomID, d := range m.docs {
			if err := m.snapshots.SaveSnapshot(ctx, roomID, d.Snapshot()); err != nil {
				log.Printf("[NpcManager] final snapshot failed room_id=%s err=%v", roomID, err)
			}
		}
	}
	log.Printf("[NpcManager] shutdown complete rooms=%d", len(m.docs))
}
