// Package domain contains the room state machine. It is pure state and
// logic: no transport, no logging, so policies like admin-as-first-joiner
// and vote redaction are unit-testable on their own.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	// DefaultAvatarEmoji is used when a joiner picks no avatar.
	DefaultAvatarEmoji = "😊"
	maxInitials        = 2
)

// ConnID identifies one live connection. Fresh per connect, never reused
// within a process lifetime.
type ConnID string

// Member is a participant's state within one room. A Member never
// outlives its Room and never appears in two Rooms at once.
type Member struct {
	ID             ConnID
	Name           string
	AvatarInitials string
	AvatarEmoji    string
	Voted          bool
	VoteValue      json.RawMessage
	JoinedAt       time.Time

	seq uint64
}

func newMember(id ConnID, name, avatar string) *Member {
	if avatar == "" {
		avatar = DefaultAvatarEmoji
	}
	return &Member{
		ID:             id,
		Name:           name,
		AvatarInitials: initialsOf(name),
		AvatarEmoji:    avatar,
		JoinedAt:       time.Now(),
	}
}

// initialsOf takes the first letter of up to two words, uppercased.
func initialsOf(name string) string {
	var b strings.Builder
	count := 0
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			b.WriteString(strings.ToUpper(string(r)))
			count++
			break
		}
		if count >= maxInitials {
			break
		}
	}
	if count == 0 {
		return "U"
	}
	return b.String()
}
