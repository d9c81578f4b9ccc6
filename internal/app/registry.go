// Package app coordinates sessions, rooms and event handling between the
// transport adapters and the domain state machine.
package app

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/FastPoint/internal/domain"
)

// Session tracks one connection's bookkeeping: its display name and the
// room it currently sits in. Created on connect, destroyed on disconnect.
type Session struct {
	ID          domain.ConnID
	Name        string
	RoomID      string
	ConnectedAt time.Time
}

type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnID]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[domain.ConnID]*Session)}
}

// OnConnect allocates a fresh connection identity with no name or room.
func (r *SessionRegistry) OnConnect() domain.ConnID {
	id := domain.ConnID(uuid.NewString())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &Session{ID: id, ConnectedAt: time.Now()}
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("session created")
	return id
}

// Lookup returns a copy; callers never hold registry-owned state.
func (r *SessionRegistry) Lookup(id domain.ConnID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// SetRoom records a successful join.
func (r *SessionRegistry) SetRoom(id domain.ConnID, roomID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.RoomID = roomID
		s.Name = name
		log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("room", roomID).Msg("session bound to room")
	}
}

// ClearRoom drops the room association but keeps the session alive.
func (r *SessionRegistry) ClearRoom(id domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.RoomID = ""
	}
}

func (r *SessionRegistry) Delete(id domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("session deleted")
}
