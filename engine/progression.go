// engine/progression.go
package engine

import (
	"pbem-turn-system/metadata"
	"pbem-turn-system/models"
	"pbem-turn-system/save"
)

// ProgressionResult is the accepted outcome of AdvanceTurn: a snapshot with
// the next active player, round and completion state applied.
// FirstFinalized is true only on the submission that first completes the
// game; it gates the one-shot finalize notification.
type ProgressionResult struct {
	Game           *models.Game
	FirstFinalized bool
}

// AdvanceTurn computes the next authoritative state from the validated game
// snapshot, the prior turn record and the parsed save. The input game is not
// modified. isCompleted may be nil, in which case DefaultIsCompleted is used.
func AdvanceTurn(
	game *models.Game,
	priorTurn *models.GameTurn,
	parsed *save.ParsedSave,
	isCompleted CompletionPredicate,
) (*ProgressionResult, error) {
	g := cloneGame(game)

	expectedRound := priorTurn.Round
	nextIndex := NextPlayerIndex(g)

	if priorTurn.Turn == 1 || g.ResetGameStateOnNextUpload {
		// Starting or resetting: take whatever round is in the file (games
		// may start in a later era) and whatever player is active in it
		// (helps migrating games from cloud/online multiplayer).
		expectedRound = parsed.GameTurn
		nextIndex = parsed.CurrentTurnIndex()
		g.ResetGameStateOnNextUpload = false

		if nextIndex < 0 {
			return nil, reject(RejectNoCurrentPlayer,
				"Couldn't detect the current player in the save file.  "+
					"If you're converting this game from PBC or Online multiplayer, "+
					"you may need to play a turn in Hotseat mode to get the file converted properly.")
		}
	} else if nextIndex <= CurrentPlayerIndex(g) {
		// Turn order wrapped: a full roster cycle completed. The round may
		// legitimately stay put once for a mid-round deliberative phase
		// (world congress).
		civGame := metadata.FindGame(g.GameType)
		if !(civGame != nil && civGame.RoundMayRepeat && parsed.GameTurn == priorTurn.Round) {
			expectedRound++
		}
	}

	if nextIndex < 0 || nextIndex >= len(parsed.CivData) ||
		!parsed.CivData[nextIndex].IsCurrentTurn {
		return nil, reject(RejectWrongPlayerTurn,
			"Incorrect player turn in save file!  "+
				"This probably means it is still your turn and you have some more moves to make!")
	}

	if expectedRound != parsed.GameTurn {
		return nil, reject(RejectRoundMismatch,
			"Incorrect game turn in save file! (actual: %d, expected: %d)",
			parsed.GameTurn, expectedRound)
	}

	g.CurrentPlayerSteamID = g.Players[nextIndex].SteamID
	g.Round = expectedRound

	if isCompleted == nil {
		isCompleted = DefaultIsCompleted
	}
	g.Completed = isCompleted(g)
	firstFinalized := g.Completed && !g.Finalized
	g.Finalized = g.Completed

	return &ProgressionResult{Game: g, FirstFinalized: firstFinalized}, nil
}
