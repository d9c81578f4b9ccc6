package app

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/FastPoint/internal/domain"
)

// DefaultVotingSystem is applied when a joiner names none.
const DefaultVotingSystem = "fibonacci"

// RoomDirectory maps room ids to live rooms. Rooms are created lazily on
// join and destroyed the instant their last member leaves; there is no
// timer-based garbage collection.
type RoomDirectory struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

// RoomInfo is the REST listing view of one room.
type RoomInfo struct {
	ID           string `json:"id"`
	VotingSystem string `json:"voting_system"`
	MemberCount  int    `json:"member_count"`
}

func NewRoomDirectory() *RoomDirectory {
	return &RoomDirectory{rooms: make(map[string]*domain.Room)}
}

func mismatchError(actual string) error {
	return fmt.Errorf("this room uses the %s voting system and it cannot be changed: %w",
		actual, domain.ErrVotingSystemMismatch)
}

// CheckSystem reports a mismatch without touching any state. The
// dispatcher calls it before tearing the joiner out of its old room, so a
// rejected join mutates nothing.
func (d *RoomDirectory) CheckSystem(roomID, votingSystem string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[roomID]
	if !ok || room.VotingSystem() == votingSystem {
		return nil
	}
	return mismatchError(room.VotingSystem())
}

// Join gets or creates the room and adds the member, all under the
// directory lock so a concurrent reap can never strand the joiner in a
// destroyed room. Reports whether the room was created by this call.
func (d *RoomDirectory) Join(roomID, votingSystem string, id domain.ConnID, name, avatar string) (domain.Snapshot, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[roomID]
	if !ok {
		room = domain.NewRoom(roomID, votingSystem)
		d.rooms[roomID] = room
		log.Info().Str("module", "app.directory").Str("room", roomID).Str("system", votingSystem).Msg("room created")
	} else if room.VotingSystem() != votingSystem {
		return domain.Snapshot{}, false, mismatchError(room.VotingSystem())
	}
	return room.AddMember(id, name, avatar), !ok, nil
}

// Leave removes the member and destroys the room if it emptied. The
// returned bool reports whether the room still exists; the snapshot is
// only meaningful when it does.
func (d *RoomDirectory) Leave(roomID string, id domain.ConnID) (domain.Snapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[roomID]
	if !ok {
		return domain.Snapshot{}, false
	}
	snap, empty := room.RemoveMember(id)
	if empty {
		delete(d.rooms, roomID)
		log.Info().Str("module", "app.directory").Str("room", roomID).Msg("room destroyed")
		return snap, false
	}
	return snap, true
}

// Get resolves a live room for in-room events (vote, reveal, reset,
// story). Serialization of those mutations is the room's own job.
func (d *RoomDirectory) Get(roomID string) (*domain.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[roomID]
	return room, ok
}

func (d *RoomDirectory) List() []RoomInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]RoomInfo, 0, len(d.rooms))
	for id, room := range d.rooms {
		out = append(out, RoomInfo{ID: id, VotingSystem: room.VotingSystem(), MemberCount: room.MemberCount()})
	}
	return out
}
