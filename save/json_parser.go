// save/json_parser.go
package save

import (
	"encoding/json"
	"fmt"

	"pbem-turn-system/models"
)

// JSONParser reads the manifest format produced by the companion client,
// which extracts the structured fields from the binary save on the player's
// machine before uploading. Decoding the binary save format itself stays on
// the client.
type JSONParser struct{}

type jsonManifest struct {
	Civs []struct {
		LeaderName    string `json:"leader_name"`
		Type          string `json:"type"`
		IsCurrentTurn bool   `json:"is_current_turn"`
		PlayerName    string `json:"player_name"`
	} `json:"civs"`
	DLCs      []string `json:"dlcs"`
	GameTurn  int      `json:"game_turn"`
	GameSpeed string   `json:"game_speed"`
	MapFile   string   `json:"map_file"`
	MapSize   string   `json:"map_size"`
}

func (p *JSONParser) Parse(data []byte, game *models.Game) (*ParsedSave, error) {
	var m jsonManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid save manifest: %w", err)
	}
	if len(m.Civs) == 0 {
		return nil, fmt.Errorf("save manifest contains no civs")
	}

	parsed := &ParsedSave{
		DLCs:      m.DLCs,
		GameTurn:  m.GameTurn,
		GameSpeed: m.GameSpeed,
		MapFile:   m.MapFile,
		MapSize:   m.MapSize,
	}
	for _, c := range m.Civs {
		actor := ActorType(c.Type)
		switch actor {
		case ActorHuman, ActorAI, ActorDead:
		default:
			return nil, fmt.Errorf("unknown actor type %q", c.Type)
		}
		parsed.CivData = append(parsed.CivData, CivData{
			LeaderName:    c.LeaderName,
			Type:          actor,
			IsCurrentTurn: c.IsCurrentTurn,
			PlayerName:    c.PlayerName,
		})
	}
	return parsed, nil
}
