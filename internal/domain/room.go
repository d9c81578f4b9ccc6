package domain

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Story is the work item currently being estimated. At most one per room;
// setting a new one discards the previous.
type Story struct {
	Title     string
	CreatedAt time.Time
}

// Room owns membership, vote and story state for one estimation room.
// Every operation is a single critical section, and mutators compute the
// post-mutation Snapshot under the same lock hold, so a broadcast never
// observes a half-applied change.
type Room struct {
	mu sync.RWMutex

	id            string
	votingSystem  string
	members       map[ConnID]*Member
	currentStory  *Story
	votesRevealed bool
	adminID       ConnID
	createdAt     time.Time
	nextSeq       uint64
}

func NewRoom(id, votingSystem string) *Room {
	return &Room{
		id:           id,
		votingSystem: votingSystem,
		members:      make(map[ConnID]*Member),
		createdAt:    time.Now(),
	}
}

func (r *Room) ID() string { return r.id }

// VotingSystem is immutable after creation.
func (r *Room) VotingSystem() string { return r.votingSystem }

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) IsAdmin(id ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return id == r.adminID && id != ""
}

// AddMember inserts a member with a cleared vote. The first joiner becomes
// admin. Re-adding an existing id overwrites its entry but keeps its join
// order. Always succeeds.
func (r *Room) AddMember(id ConnID, name, avatar string) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) == 0 {
		r.adminID = id
	}
	m := newMember(id, name, avatar)
	if prev, ok := r.members[id]; ok {
		m.JoinedAt = prev.JoinedAt
		m.seq = prev.seq
	} else {
		r.nextSeq++
		m.seq = r.nextSeq
	}
	r.members[id] = m
	return r.snapshotLocked()
}

// RemoveMember deletes the member if present and reports whether the room
// is now empty. The caller (the directory) is responsible for destroying
// empty rooms. If the admin leaves a non-empty room, the earliest joined
// remaining member is promoted, keeping the single-admin invariant.
func (r *Room) RemoveMember(id ConnID) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, id)
	if len(r.members) == 0 {
		r.adminID = ""
		return r.snapshotLocked(), true
	}
	if id == r.adminID {
		r.adminID = r.earliestLocked()
	}
	return r.snapshotLocked(), false
}

func (r *Room) earliestLocked() ConnID {
	var oldest *Member
	for _, m := range r.members {
		if oldest == nil || m.seq < oldest.seq {
			oldest = m
		}
	}
	return oldest.ID
}

// MemberIDByName finds the earliest joined member with the given display
// name, excluding the caller.
func (r *Room) MemberIDByName(caller ConnID, name string) (ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *Member
	for _, m := range r.members {
		if m.ID == caller || m.Name != name {
			continue
		}
		if found == nil || m.seq < found.seq {
			found = m
		}
	}
	if found == nil {
		return "", false
	}
	return found.ID, true
}

// CastVote records an opaque vote token verbatim. Unknown members are
// silently ignored; tokens are never validated against the voting system.
func (r *Room) CastVote(id ConnID, value json.RawMessage) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[id]; ok {
		m.VoteValue = append(json.RawMessage(nil), value...)
		m.Voted = true
	}
	return r.snapshotLocked()
}

// RevealVotes is idempotent.
func (r *Room) RevealVotes() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.votesRevealed = true
	return r.snapshotLocked()
}

// ResetRound clears every member's vote and hides values again.
func (r *Room) ResetRound() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetRoundLocked()
	return r.snapshotLocked()
}

func (r *Room) resetRoundLocked() {
	for _, m := range r.members {
		m.Voted = false
		m.VoteValue = nil
	}
	r.votesRevealed = false
}

// SetStory replaces the current story and resets the round as one atomic
// effect: a new story always starts with a clean slate.
func (r *Room) SetStory(title string) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentStory = &Story{Title: title, CreatedAt: time.Now()}
	r.resetRoundLocked()
	return r.snapshotLocked()
}

// Snapshot is a pure projection with no side effects.
func (r *Room) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:            r.id,
		VotingSystem:  r.votingSystem,
		VotesRevealed: r.votesRevealed,
		Users:         make([]MemberView, 0, len(r.members)),
	}
	if r.currentStory != nil {
		title := r.currentStory.Title
		snap.CurrentStory = &title
	}
	for _, m := range r.members {
		var value any
		switch {
		case r.votesRevealed && m.Voted:
			value = m.VoteValue
		case m.Voted:
			value = VotedMarker
		}
		snap.Users = append(snap.Users, MemberView{
			ID:             m.ID,
			Name:           m.Name,
			AvatarInitials: m.AvatarInitials,
			AvatarEmoji:    m.AvatarEmoji,
			Voted:          m.Voted,
			VoteValue:      value,
			IsAdmin:        m.ID == r.adminID,
		})
		if m.Voted {
			snap.VotedCount++
		} else {
			snap.WaitingCount++
		}
	}
	seqOf := func(id ConnID) uint64 { return r.members[id].seq }
	sort.Slice(snap.Users, func(i, j int) bool {
		return seqOf(snap.Users[i].ID) < seqOf(snap.Users[j].ID)
	})
	return snap
}
