// engine/roster.go
package engine

import "pbem-turn-system/models"

// CurrentPlayerIndex returns the roster slot of the game's active player,
// or -1 if the active player is not on the roster.
func CurrentPlayerIndex(g *models.Game) int {
	for i := range g.Players {
		if g.Players[i].SteamID != "" && g.Players[i].SteamID == g.CurrentPlayerSteamID {
			return i
		}
	}
	return -1
}

// NextPlayerIndex returns the slot of the next human, non-surrendered player
// after the current one, wrapping around the roster. Returns -1 when no such
// player exists.
func NextPlayerIndex(g *models.Game) int {
	cur := CurrentPlayerIndex(g)
	n := len(g.Players)

	for offset := 1; offset <= n; offset++ {
		i := (cur + offset) % n
		if i < 0 {
			i += n
		}
		if g.Players[i].IsHuman() {
			return i
		}
	}
	return -1
}

// CompletionPredicate decides whether a game has ended given its full roster
// state. Injected so alternate victory rules can replace the default.
type CompletionPredicate func(g *models.Game) bool

// DefaultIsCompleted ends the game once fewer than two human players remain
// alive.
func DefaultIsCompleted(g *models.Game) bool {
	alive := 0
	for i := range g.Players {
		if g.Players[i].IsHuman() {
			alive++
		}
	}
	return alive < 2
}

// cloneGame deep-copies the fields the turn pipeline may modify, so the
// validator and progression engine can return fresh snapshots without
// touching the caller's record.
func cloneGame(g *models.Game) *models.Game {
	clone := *g
	clone.Players = make([]models.GamePlayer, len(g.Players))
	copy(clone.Players, g.Players)
	clone.DLC = make(models.StringList, len(g.DLC))
	copy(clone.DLC, g.DLC)
	return &clone
}
