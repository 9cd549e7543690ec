// engine/validator.go
//
// Pure validation of one uploaded save against the game's configuration.
// Nothing here touches storage or the network; callers get back a fresh
// Game snapshot (or a RejectionError) and decide what to persist.
package engine

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"pbem-turn-system/metadata"
	"pbem-turn-system/models"
	"pbem-turn-system/save"
)

// ValidationResult is the accepted outcome of ValidateSubmission: an updated
// copy of the game plus the players first marked defeated by this save.
type ValidationResult struct {
	Game          *models.Game
	NewlyDefeated []models.GamePlayer
}

// ValidateSubmission checks that parsed is a legal next save for game,
// submitted by submitterSteamID as turn number turnNumber. The input game is
// never modified; on success the returned snapshot carries any civ-type
// adoptions, DLC migration, new AI slots and defeat flags.
func ValidateSubmission(
	game *models.Game,
	parsed *save.ParsedSave,
	submitterSteamID string,
	turnNumber int,
	now time.Time,
) (*ValidationResult, error) {
	if game.CurrentPlayerSteamID != submitterSteamID {
		return nil, reject(RejectNotYourTurn, "It's not your turn!")
	}

	g := cloneGame(game)
	civGame := metadata.FindGame(g.GameType)

	// Games configured with Great Leaders before the Julius Caesar pack was
	// split out start reporting Caesar in saves even though it was never
	// enabled on the game. Adopt it instead of rejecting.
	if turnNumber > 1 &&
		g.DLC.Contains(metadata.DLCGreatLeaders) &&
		!g.DLC.Contains(metadata.DLCJuliusCaesar) &&
		containsString(parsed.DLCs, metadata.DLCJuliusCaesar) {
		g.DLC = append(g.DLC, metadata.DLCJuliusCaesar)
	}

	if err := checkDLC(g, parsed, civGame); err != nil {
		return nil, err
	}

	if len(parsed.CivData) != g.Slots {
		return nil, reject(RejectSlotCount,
			"Invalid number of civs in save file! (actual: %d, expected: %d)",
			len(parsed.CivData), g.Slots)
	}

	if g.GameSpeed != "" && g.GameSpeed != parsed.GameSpeed {
		return nil, reject(RejectGameSpeed,
			"Invalid game speed in save file! (actual: %s, expected: %s)",
			parsed.GameSpeed, g.GameSpeed)
	}

	if err := checkMap(g, parsed, civGame); err != nil {
		return nil, err
	}

	if g.MapSize != "" && g.MapSize != parsed.MapSize {
		return nil, reject(RejectMapSize,
			"Invalid map size in save file! (actual: %s, expected: %s)",
			parsed.MapSize, g.MapSize)
	}

	newlyDefeated, err := checkCivs(g, parsed, now)
	if err != nil {
		return nil, err
	}

	return &ValidationResult{Game: g, NewlyDefeated: newlyDefeated}, nil
}

// checkDLC enforces an empty symmetric difference between the configured and
// detected DLC sets, reporting both directions by display name.
func checkDLC(g *models.Game, parsed *save.ParsedSave, civGame *metadata.CivGame) error {
	notInSave := difference(g.DLC, parsed.DLCs)
	notInGame := difference(parsed.DLCs, g.DLC)

	if len(notInSave) == 0 && len(notInGame) == 0 {
		return nil
	}

	displayName := func(id string) string {
		if civGame != nil {
			return civGame.DLCDisplayName(id)
		}
		return id
	}

	msg := "DLC mismatch!  Please ensure that you have the correct DLC enabled (or disabled)!"
	if len(notInSave) > 0 {
		msg += "\nEnabled but not in save: " + joinNames(notInSave, displayName)
	}
	if len(notInGame) > 0 {
		msg += "\nIn save but not enabled: " + joinNames(notInGame, displayName)
	}

	return reject(RejectDLCMismatch, "%s", msg)
}

func checkMap(g *models.Game, parsed *save.ParsedSave, civGame *metadata.CivGame) error {
	if g.MapFile == "" {
		return nil
	}

	saveMap := parsed.MapFile

	var mapDef *metadata.Map
	if civGame != nil {
		mapDef = civGame.FindMap(g.MapFile)
	}

	if mapDef != nil && mapDef.Regex != "" {
		re, err := regexp.Compile(mapDef.Regex)
		if err == nil && !re.MatchString(saveMap) {
			return reject(RejectMapFile,
				"Invalid map file in save file! (actual: %s, expected regex: %s)",
				saveMap, mapDef.Regex)
		}
		return nil
	}

	if !strings.Contains(strings.ToLower(saveMap), strings.ToLower(g.MapFile)) {
		return reject(RejectMapFile,
			"Invalid map file in save file! (actual: %s, expected: %s)",
			saveMap, g.MapFile)
	}
	return nil
}

// checkCivs verifies per-slot civ identity, adopts leaders for random slots,
// fills new AI slots from the save, and marks defeated humans. Inconsistent
// actor kinds (AI reported where a human is expected, or the reverse) are
// tolerated: the save state is rewritten downstream and skipped turns make
// the report unreliable. Only DEAD on a human slot is acted on.
func checkCivs(g *models.Game, parsed *save.ParsedSave, now time.Time) ([]models.GamePlayer, error) {
	var newlyDefeated []models.GamePlayer

	for i, civ := range parsed.CivData {
		if i < len(g.Players) {
			player := &g.Players[i]

			expected := player.CivType
			if expected == "" || expected == metadata.RandomCivLeaderKey {
				player.CivType = civ.LeaderName
			} else if civ.LeaderName != expected {
				return nil, reject(RejectCivType,
					"Incorrect civ type in save file! (actual: %s, expected: %s)",
					civ.LeaderName, expected)
			}

			if player.IsHuman() && civ.Type == save.ActorDead {
				surrendered := now
				player.HasSurrendered = true
				player.SurrenderDate = &surrendered
				newlyDefeated = append(newlyDefeated, *player)
			}
			continue
		}

		// Slot beyond the known roster: only acceptable for AI/dead civs
		// filled in from an initial upload.
		if civ.Type == save.ActorHuman {
			return nil, reject(RejectUnclaimedHuman, "Expected civ %d to be AI/Dead!", i+1)
		}

		g.Players = append(g.Players, models.GamePlayer{
			ID:      uuid.NewString(),
			GameID:  g.ID,
			Slot:    i,
			CivType: civ.LeaderName,
		})
	}

	return newlyDefeated, nil
}

func difference(a, b []string) []string {
	var out []string
	for _, v := range a {
		if !containsString(b, v) {
			out = append(out, v)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func joinNames(ids []string, displayName func(string) string) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = displayName(id)
	}
	return strings.Join(names, ", ")
}
