// engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// RejectionKind distinguishes the user-correctable rejection classes so the
// transport layer and tests don't have to string-match messages.
type RejectionKind string

const (
	RejectNotYourTurn     RejectionKind = "NOT_YOUR_TURN"
	RejectDLCMismatch     RejectionKind = "DLC_MISMATCH"
	RejectSlotCount       RejectionKind = "SLOT_COUNT"
	RejectGameSpeed       RejectionKind = "GAME_SPEED"
	RejectMapFile         RejectionKind = "MAP_FILE"
	RejectMapSize         RejectionKind = "MAP_SIZE"
	RejectCivType         RejectionKind = "CIV_TYPE"
	RejectUnclaimedHuman  RejectionKind = "UNCLAIMED_HUMAN_SLOT"
	RejectNoCurrentPlayer RejectionKind = "NO_CURRENT_PLAYER"
	RejectWrongPlayerTurn RejectionKind = "WRONG_PLAYER_TURN"
	RejectRoundMismatch   RejectionKind = "ROUND_MISMATCH"
)

// RejectionError is a validation failure the submitting player can fix.
// It is surfaced verbatim to the caller and never logged as an error.
type RejectionError struct {
	Kind    RejectionKind
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

func reject(kind RejectionKind, format string, args ...interface{}) error {
	return &RejectionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsRejection unwraps err into a RejectionError, or returns nil.
func AsRejection(err error) *RejectionError {
	var r *RejectionError
	if errors.As(err, &r) {
		return r
	}
	return nil
}
