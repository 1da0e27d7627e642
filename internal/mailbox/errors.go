package mailbox

import (
	"errors"
	"fmt"
)

// ErrEmailNotFound is returned for a missing identifier. Hidden emails
// return the same sentinel: a caller cannot distinguish an email that
// does not exist from one that policy removed.
var ErrEmailNotFound = errors.New("email not found")

// ErrUnknownFolder is returned when the connector has no such folder.
var ErrUnknownFolder = errors.New("unknown folder")

// BlockedError is the hard stop for content that scored at or above
// the protection threshold. Extract with errors.As.
type BlockedError struct {
	Folder    string
	UID       uint32
	Score     float64
	Threshold float64
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("email %s/%d blocked: manipulation score %.2f at or above threshold %.2f",
		e.Folder, e.UID, e.Score, e.Threshold)
}
