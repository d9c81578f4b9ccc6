package domain

// VotedMarker replaces a hidden vote in snapshots until the round is
// revealed. No client ever sees another's real value early.
const VotedMarker = "👍"

// MemberView is the broadcast-safe projection of one member.
type MemberView struct {
	ID             ConnID `json:"id"`
	Name           string `json:"name"`
	AvatarInitials string `json:"avatar_initials"`
	AvatarEmoji    string `json:"avatar_emoji"`
	Voted          bool   `json:"voted"`
	VoteValue      any    `json:"vote_value"`
	IsAdmin        bool   `json:"is_admin"`
}

// Snapshot is the redacted projection of room state that goes out to
// every member after a mutation.
type Snapshot struct {
	ID            string       `json:"id"`
	VotingSystem  string       `json:"voting_system"`
	CurrentStory  *string      `json:"current_story"`
	Users         []MemberView `json:"users"`
	VotesRevealed bool         `json:"votes_revealed"`
	WaitingCount  int          `json:"waiting_count"`
	VotedCount    int          `json:"voted_count"`
}
