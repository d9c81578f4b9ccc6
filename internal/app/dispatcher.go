package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/FastPoint/internal/domain"
)

// Outbound event names.
const (
	EventConnected   = "connected"
	EventRoomState   = "room_state"
	EventUserLeft    = "user_left"
	EventUserRemoved = "user_removed"
	EventError       = "error"
)

// Transport is the boundary to the connection layer. Sends are
// fire-and-forget: no acknowledgment, no retry.
type Transport interface {
	Subscribe(id domain.ConnID, roomID string)
	Unsubscribe(id domain.ConnID, roomID string)
	SendTo(id domain.ConnID, event string, payload any)
	BroadcastTo(roomID string, event string, payload any)
}

type JoinPayload struct {
	Name         string `json:"name"`
	RoomID       string `json:"room_id"`
	Avatar       string `json:"avatar"`
	VotingSystem string `json:"voting_system"`
}

type ConnectedPayload struct {
	UserID domain.ConnID `json:"user_id"`
}

type NoticePayload struct {
	Message string `json:"message"`
}

// RoomStatePayload is the join broadcast: a snapshot plus the new-room flag.
type RoomStatePayload struct {
	domain.Snapshot
	IsNewRoom bool `json:"is_new_room"`
}

// Dispatcher validates inbound events, applies them to room state and
// broadcasts the resulting snapshot to the affected room. Any
// precondition failure goes back to the caller as a private error notice.
type Dispatcher struct {
	Sessions  *SessionRegistry
	Rooms     *RoomDirectory
	Transport Transport
}

func NewDispatcher(sessions *SessionRegistry, rooms *RoomDirectory, transport Transport) *Dispatcher {
	return &Dispatcher{Sessions: sessions, Rooms: rooms, Transport: transport}
}

// Connect allocates the connection identity and tells the caller about it.
func (d *Dispatcher) Connect(id domain.ConnID) {
	d.Transport.SendTo(id, EventConnected, ConnectedPayload{UserID: id})
}

// Join moves the caller into a room, leaving its old room first. A
// voting-system mismatch is rejected before anything mutates.
func (d *Dispatcher) Join(id domain.ConnID, p JoinPayload) {
	name := strings.TrimSpace(p.Name)
	roomID := strings.TrimSpace(p.RoomID)
	if name == "" || roomID == "" {
		d.sendError(id, fmt.Errorf("invalid room or name: %w", domain.ErrInvalidInput))
		return
	}
	sess, ok := d.Sessions.Lookup(id)
	if !ok {
		d.sendError(id, domain.ErrNotInRoom)
		return
	}
	votingSystem := p.VotingSystem
	if votingSystem == "" {
		votingSystem = DefaultVotingSystem
	}
	if err := d.Rooms.CheckSystem(roomID, votingSystem); err != nil {
		d.sendError(id, err)
		return
	}
	if sess.RoomID != "" && sess.RoomID != roomID {
		d.leaveRoom(id, sess.RoomID)
	}
	snap, isNew, err := d.Rooms.Join(roomID, votingSystem, id, name, p.Avatar)
	if err != nil {
		d.sendError(id, err)
		return
	}
	d.Sessions.SetRoom(id, roomID, name)
	d.Transport.Subscribe(id, roomID)
	d.Transport.BroadcastTo(roomID, EventRoomState, RoomStatePayload{Snapshot: snap, IsNewRoom: isNew})
	log.Info().Str("module", "app.dispatcher").Str("sid", string(id)).Str("room", roomID).Bool("new", isNew).Msg("joined room")
}

// Vote stores the caller's opaque token. Any value is accepted.
func (d *Dispatcher) Vote(id domain.ConnID, value json.RawMessage) {
	room, ok := d.roomOf(id)
	if !ok {
		d.sendError(id, domain.ErrNotInRoom)
		return
	}
	snap := room.CastVote(id, value)
	d.Transport.BroadcastTo(room.ID(), EventRoomState, snap)
}

func (d *Dispatcher) RevealVotes(id domain.ConnID) {
	room, ok := d.roomOf(id)
	if !ok {
		d.sendError(id, domain.ErrNotInRoom)
		return
	}
	snap := room.RevealVotes()
	d.Transport.BroadcastTo(room.ID(), EventRoomState, snap)
}

func (d *Dispatcher) ResetRound(id domain.ConnID) {
	room, ok := d.roomOf(id)
	if !ok {
		d.sendError(id, domain.ErrNotInRoom)
		return
	}
	snap := room.ResetRound()
	d.Transport.BroadcastTo(room.ID(), EventRoomState, snap)
}

func (d *Dispatcher) SetStory(id domain.ConnID, title string) {
	title = strings.TrimSpace(title)
	room, ok := d.roomOf(id)
	if !ok {
		d.sendError(id, domain.ErrNotInRoom)
		return
	}
	if title == "" {
		d.sendError(id, fmt.Errorf("invalid story: %w", domain.ErrInvalidInput))
		return
	}
	snap := room.SetStory(title)
	d.Transport.BroadcastTo(room.ID(), EventRoomState, snap)
}

// RemoveUser lets the admin eject a member by display name. The target
// gets a private notice; an unknown name is a silent no-op.
func (d *Dispatcher) RemoveUser(id domain.ConnID, userName string) {
	userName = strings.TrimSpace(userName)
	room, ok := d.roomOf(id)
	if !ok {
		d.sendError(id, domain.ErrNotInRoom)
		return
	}
	if !room.IsAdmin(id) {
		d.sendError(id, fmt.Errorf("only the admin can remove users: %w", domain.ErrNotAuthorized))
		return
	}
	target, ok := room.MemberIDByName(id, userName)
	if !ok {
		return
	}
	snap, _ := d.Rooms.Leave(room.ID(), target)
	d.Sessions.ClearRoom(target)
	d.Transport.SendTo(target, EventUserRemoved, NoticePayload{Message: "You have been removed from the room"})
	d.Transport.Unsubscribe(target, room.ID())
	d.Transport.BroadcastTo(room.ID(), EventRoomState, snap)
	log.Info().Str("module", "app.dispatcher").Str("sid", string(id)).Str("removed", string(target)).Str("room", room.ID()).Msg("member removed by admin")
}

// Disconnect tears down the session: membership cleanup, a user_left
// broadcast to the vacated room if anyone remains, and session deletion.
func (d *Dispatcher) Disconnect(id domain.ConnID) {
	sess, ok := d.Sessions.Lookup(id)
	if ok && sess.RoomID != "" {
		d.leaveRoom(id, sess.RoomID)
	}
	d.Sessions.Delete(id)
}

func (d *Dispatcher) leaveRoom(id domain.ConnID, roomID string) {
	snap, alive := d.Rooms.Leave(roomID, id)
	d.Transport.Unsubscribe(id, roomID)
	d.Sessions.ClearRoom(id)
	if alive {
		d.Transport.BroadcastTo(roomID, EventUserLeft, snap)
	}
}

// roomOf resolves the caller's current room. A missing session record is
// treated the same as not being in a room.
func (d *Dispatcher) roomOf(id domain.ConnID) (*domain.Room, bool) {
	sess, ok := d.Sessions.Lookup(id)
	if !ok || sess.RoomID == "" {
		return nil, false
	}
	return d.Rooms.Get(sess.RoomID)
}

func (d *Dispatcher) sendError(id domain.ConnID, err error) {
	log.Debug().Str("module", "app.dispatcher").Str("sid", string(id)).Err(err).Msg("rejected event")
	d.Transport.SendTo(id, EventError, NoticePayload{Message: err.Error()})
}
