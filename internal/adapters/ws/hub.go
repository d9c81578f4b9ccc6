package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/FastPoint/internal/domain"
)

// Sender is what the hub needs from an endpoint. *Conn implements it;
// tests plug in fakes.
type Sender interface {
	TrySend([]byte) error
}

// envelope is the outbound wire shape for every server event.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub tracks live connections and their room subscriptions, and
// implements the dispatcher's Transport boundary. Delivery is
// fire-and-forget: slow consumers lose frames, nobody is awaited.
type Hub struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]Sender
	rooms map[string]map[domain.ConnID]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[domain.ConnID]Sender),
		rooms: make(map[string]map[domain.ConnID]struct{}),
	}
}

func (h *Hub) Register(id domain.ConnID, c Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = c
}

// Unregister drops the connection and every room subscription it held.
func (h *Hub) Unregister(id domain.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
	for roomID, members := range h.rooms {
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) Subscribe(id domain.ConnID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[domain.ConnID]struct{})
		h.rooms[roomID] = members
	}
	members[id] = struct{}{}
}

func (h *Hub) Unsubscribe(id domain.ConnID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) SendTo(id domain.ConnID, event string, payload any) {
	b, err := json.Marshal(envelope{Type: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("module", "ws.hub").Str("event", event).Msg("marshal")
		return
	}
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "ws.hub").Str("sid", string(id)).Str("event", event).Msg("send dropped")
	}
}

func (h *Hub) BroadcastTo(roomID string, event string, payload any) {
	b, err := json.Marshal(envelope{Type: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("module", "ws.hub").Str("event", event).Msg("marshal")
		return
	}
	h.mu.RLock()
	targets := make([]Sender, 0, len(h.rooms[roomID]))
	for id := range h.rooms[roomID] {
		if c, ok := h.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	dropped := 0
	for _, c := range targets {
		if err := c.TrySend(b); err != nil {
			dropped++
		}
	}
	log.Debug().Str("module", "ws.hub").Str("room", roomID).Str("event", event).Int("sent_to", len(targets)-dropped).Int("dropped", dropped).Msg("broadcast")
}
