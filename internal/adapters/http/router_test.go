package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dkeye/FastPoint/internal/adapters/ws"
	"github.com/dkeye/FastPoint/internal/app"
	"github.com/dkeye/FastPoint/internal/config"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type userView struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	AvatarInitials string          `json:"avatar_initials"`
	AvatarEmoji    string          `json:"avatar_emoji"`
	Voted          bool            `json:"voted"`
	VoteValue      json.RawMessage `json:"vote_value"`
	IsAdmin        bool            `json:"is_admin"`
}

type stateView struct {
	ID            string     `json:"id"`
	VotingSystem  string     `json:"voting_system"`
	CurrentStory  *string    `json:"current_story"`
	Users         []userView `json:"users"`
	VotesRevealed bool       `json:"votes_revealed"`
	WaitingCount  int        `json:"waiting_count"`
	VotedCount    int        `json:"voted_count"`
	IsNewRoom     bool       `json:"is_new_room"`
}

func newTestServer(t *testing.T) (*httptest.Server, *app.RoomDirectory) {
	t.Helper()
	cfg := &config.Config{
		Mode:       "release",
		StaticPath: t.TempDir(),
		ReadLimit:  32768,
		PingPeriod: 54 * time.Second,
	}
	sessions := app.NewSessionRegistry()
	rooms := app.NewRoomDirectory()
	hub := ws.NewHub()
	dispatcher := app.NewDispatcher(sessions, rooms, hub)
	controller := ws.NewController(cfg, hub, dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := httptest.NewServer(SetupRouter(ctx, cfg, controller, rooms))
	t.Cleanup(srv.Close)
	return srv, rooms
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func readFrame(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	if err := c.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var f frame
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return f
}

func readState(t *testing.T, c *websocket.Conn, wantType string) stateView {
	t.Helper()
	f := readFrame(t, c)
	if f.Type != wantType {
		t.Fatalf("frame type = %s, want %s", f.Type, wantType)
	}
	var s stateView
	if err := json.Unmarshal(f.Data, &s); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	return s
}

func send(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	if err := c.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func userNamed(t *testing.T, s stateView, name string) userView {
	t.Helper()
	for _, u := range s.Users {
		if u.Name == name {
			return u
		}
	}
	t.Fatalf("user %q not in state", name)
	return userView{}
}

func TestEstimationRoundTrip(t *testing.T) {
	srv, rooms := newTestServer(t)

	alice := dial(t, srv)
	f := readFrame(t, alice)
	if f.Type != "connected" {
		t.Fatalf("first frame = %s, want connected", f.Type)
	}
	var connected struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(f.Data, &connected); err != nil || connected.UserID == "" {
		t.Fatalf("connected payload = %s", f.Data)
	}

	send(t, alice, map[string]any{"type": "join_room", "name": "Alice Smith", "room_id": "R1"})
	state := readState(t, alice, "room_state")
	if !state.IsNewRoom {
		t.Error("first join should create the room")
	}
	a := userNamed(t, state, "Alice Smith")
	if !a.IsAdmin || a.AvatarInitials != "AS" || a.AvatarEmoji != "😊" {
		t.Errorf("alice = %+v", a)
	}

	bob := dial(t, srv)
	readFrame(t, bob) // connected
	send(t, bob, map[string]any{"type": "join_room", "name": "Bob", "room_id": "R1", "avatar": "🎯"})
	state = readState(t, bob, "room_state")
	if state.IsNewRoom {
		t.Error("second join should reuse the room")
	}
	if userNamed(t, state, "Bob").IsAdmin {
		t.Error("Bob should not be admin")
	}
	readState(t, alice, "room_state") // Alice sees Bob arrive

	send(t, alice, map[string]any{"type": "set_story", "story": "Login flow"})
	state = readState(t, alice, "room_state")
	if state.CurrentStory == nil || *state.CurrentStory != "Login flow" {
		t.Fatalf("current_story = %v", state.CurrentStory)
	}
	readState(t, bob, "room_state")

	send(t, alice, map[string]any{"type": "vote", "vote": "5"})
	readState(t, alice, "room_state")
	readState(t, bob, "room_state")

	send(t, bob, map[string]any{"type": "vote", "vote": 8})
	state = readState(t, alice, "room_state")
	readState(t, bob, "room_state")
	if state.VotedCount != 2 || state.WaitingCount != 0 {
		t.Errorf("counts = %d voted / %d waiting", state.VotedCount, state.WaitingCount)
	}
	for _, u := range state.Users {
		var hidden string
		if err := json.Unmarshal(u.VoteValue, &hidden); err != nil || hidden != "👍" {
			t.Errorf("%s shows %s before reveal, want the marker", u.Name, u.VoteValue)
		}
	}

	send(t, alice, map[string]any{"type": "reveal_votes"})
	state = readState(t, bob, "room_state")
	readState(t, alice, "room_state")
	if !state.VotesRevealed {
		t.Fatal("votes should be revealed")
	}
	if got := userNamed(t, state, "Alice Smith").VoteValue; string(got) != `"5"` {
		t.Errorf("Alice's vote = %s, want \"5\"", got)
	}
	if got := userNamed(t, state, "Bob").VoteValue; string(got) != `8` {
		t.Errorf("Bob's vote = %s, want 8 (number, verbatim)", got)
	}

	// REST surface sees the live room.
	resp, err := http.Get(srv.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("GET /api/rooms: %v", err)
	}
	defer resp.Body.Close()
	var listing struct {
		Rooms []app.RoomInfo `json:"rooms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Rooms) != 1 || listing.Rooms[0].ID != "R1" || listing.Rooms[0].MemberCount != 2 {
		t.Errorf("listing = %+v", listing.Rooms)
	}

	// Bob disconnects; Alice gets user_left and the room survives.
	bob.Close()
	state = readState(t, alice, "user_left")
	if len(state.Users) != 1 {
		t.Errorf("remaining users = %d, want 1", len(state.Users))
	}

	// Alice disconnects; the room is destroyed.
	alice.Close()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(rooms.List()) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("room should be destroyed after the last member disconnects")
}

func TestVotingSystemMismatchOverWire(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dial(t, srv)
	readFrame(t, alice)
	send(t, alice, map[string]any{"type": "join_room", "name": "Alice", "room_id": "R1", "voting_system": "fibonacci"})
	readState(t, alice, "room_state")

	carol := dial(t, srv)
	readFrame(t, carol)
	send(t, carol, map[string]any{"type": "join_room", "name": "Carol", "room_id": "R1", "voting_system": "scrum"})
	f := readFrame(t, carol)
	if f.Type != "error" {
		t.Fatalf("frame = %s, want error", f.Type)
	}
	var notice struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(f.Data, &notice); err != nil {
		t.Fatalf("unmarshal notice: %v", err)
	}
	if !strings.Contains(notice.Message, "fibonacci") {
		t.Errorf("notice should name the room's system: %s", notice.Message)
	}
}

func TestPingPong(t *testing.T) {
	srv, _ := newTestServer(t)
	c := dial(t, srv)
	readFrame(t, c)
	send(t, c, map[string]any{"type": "ping"})
	if f := readFrame(t, c); f.Type != "pong" {
		t.Errorf("frame = %s, want pong", f.Type)
	}
}

func TestRemoveUserOverWire(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dial(t, srv)
	readFrame(t, alice)
	send(t, alice, map[string]any{"type": "join_room", "name": "Alice", "room_id": "R1"})
	readState(t, alice, "room_state")

	bob := dial(t, srv)
	readFrame(t, bob)
	send(t, bob, map[string]any{"type": "join_room", "name": "Bob", "room_id": "R1"})
	readState(t, bob, "room_state")
	readState(t, alice, "room_state")

	send(t, alice, map[string]any{"type": "remove_user", "user_name": "Bob"})
	f := readFrame(t, bob)
	if f.Type != "user_removed" {
		t.Fatalf("Bob's frame = %s, want user_removed", f.Type)
	}
	state := readState(t, alice, "room_state")
	if len(state.Users) != 1 || state.Users[0].Name != "Alice" {
		t.Errorf("state.Users = %+v", state.Users)
	}
}
