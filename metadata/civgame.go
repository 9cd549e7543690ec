// metadata/civgame.go
package metadata

// RandomCivLeaderKey is the sentinel civ assigned to players who asked for a
// random leader; the real leader is adopted from the first uploaded save.
const RandomCivLeaderKey = "LEADER_RANDOM"

// DLC identifiers referenced by the turn validator's one-time migration:
// games created with Great Leaders before the Julius Caesar pack was split
// out start reporting Caesar in their saves even though it was never
// configured on the game.
const (
	DLCGreatLeaders = "7A66DB58-B354-4061-8C80-95B638DD6F6C"
	DLCJuliusCaesar = "9ED63236-617C-45A6-BB70-8CB6B0BE8ED2"
)

type DLC struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Map describes a selectable map script. Regex, when set, is matched against
// the save's map field instead of a substring check (some maps embed seeds
// or localized names in the save).
type Map struct {
	File        string `json:"file"`
	DisplayName string `json:"display_name"`
	Regex       string `json:"regex,omitempty"`
}

// CivGame is the static metadata for one supported game title.
type CivGame struct {
	ID            string   `json:"id"`
	DisplayName   string   `json:"display_name"`
	SaveExtension string   `json:"save_extension"`
	GameSpeeds    []string `json:"game_speeds"`
	DLCs          []DLC    `json:"dlcs"`
	Maps          []Map    `json:"maps"`

	// RoundMayRepeat marks rule sets with a mid-round deliberative phase
	// (world congress): the round counter may legitimately stay put for one
	// extra submission after a full roster wrap.
	RoundMayRepeat bool `json:"round_may_repeat"`
}

// FindDLC returns the DLC definition for id, or nil.
func (g *CivGame) FindDLC(id string) *DLC {
	for i := range g.DLCs {
		if g.DLCs[i].ID == id {
			return &g.DLCs[i]
		}
	}
	return nil
}

// DLCDisplayName resolves id to a display name, falling back to the raw id
// for packs we don't know about.
func (g *CivGame) DLCDisplayName(id string) string {
	if dlc := g.FindDLC(id); dlc != nil {
		return dlc.DisplayName
	}
	return id
}

// FindMap returns the map definition for file, or nil.
func (g *CivGame) FindMap(file string) *Map {
	for i := range g.Maps {
		if g.Maps[i].File == file {
			return &g.Maps[i]
		}
	}
	return nil
}

var Civ6 = CivGame{
	ID:             "CIV6",
	DisplayName:    "Civilization VI",
	SaveExtension:  "Civ6Save",
	RoundMayRepeat: true,
	GameSpeeds:     []string{"Online", "Quick", "Standard", "Epic", "Marathon"},
	DLCs: []DLC{
		{ID: "E3F53C61-371C-440B-96CE-077D318B36C0", DisplayName: "Aztec Civilization Pack"},
		{ID: "1F367231-A040-4793-BDBB-088816853683", DisplayName: "Rise and Fall"},
		{ID: "9DE86512-DE1A-400D-8C0A-AB46EBBF76B9", DisplayName: "Gathering Storm"},
		{ID: DLCGreatLeaders, DisplayName: "Great Leaders Pack"},
		{ID: DLCJuliusCaesar, DisplayName: "Julius Caesar"},
	},
	Maps: []Map{
		{File: "Continents.lua", DisplayName: "Continents"},
		{File: "Pangaea.lua", DisplayName: "Pangaea"},
		{File: "Fractal.lua", DisplayName: "Fractal"},
		{File: "Earth.lua", DisplayName: "Earth", Regex: `(?i)earth`},
		{File: "InlandSea.lua", DisplayName: "Inland Sea"},
	},
}

var Civ5 = CivGame{
	ID:            "CIV5",
	DisplayName:   "Civilization V",
	SaveExtension: "Civ5Save",
	GameSpeeds:    []string{"Quick", "Standard", "Epic", "Marathon"},
	DLCs: []DLC{
		{ID: "GODS_AND_KINGS", DisplayName: "Gods & Kings"},
		{ID: "BRAVE_NEW_WORLD", DisplayName: "Brave New World"},
	},
	Maps: []Map{
		{File: "Assets\\Maps\\Continents.lua", DisplayName: "Continents"},
		{File: "Assets\\Maps\\Pangaea.lua", DisplayName: "Pangaea"},
	},
}

var CivGames = []*CivGame{&Civ6, &Civ5}

// FindGame returns the metadata for a game-type id, or nil.
func FindGame(id string) *CivGame {
	for _, g := range CivGames {
		if g.ID == id {
			return g
		}
	}
	return nil
}
