package domain

import "errors"

// All of these are recoverable: the triggering connection gets a private
// notice and stays usable. Nothing here is fatal to the process.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotInRoom            = errors.New("not in a room")
	ErrVotingSystemMismatch = errors.New("voting system mismatch")
	ErrNotAuthorized        = errors.New("not authorized")
)
