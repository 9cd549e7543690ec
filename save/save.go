// save/save.go
package save

import (
	"bytes"
	"compress/gzip"
	"io"

	"pbem-turn-system/models"
)

// ActorType is the controller of one slot as reported by the save file.
type ActorType string

const (
	ActorHuman ActorType = "HUMAN"
	ActorAI    ActorType = "AI"
	ActorDead  ActorType = "DEAD"
)

// CivData is one roster slot as parsed out of a save file.
type CivData struct {
	LeaderName    string
	Type          ActorType
	IsCurrentTurn bool
	PlayerName    string
}

// ParsedSave is the transient result of parsing one uploaded save. It lives
// for a single validation cycle and is never persisted.
type ParsedSave struct {
	CivData   []CivData
	DLCs      []string
	GameTurn  int // the round counter inside the save, not our turn sequence
	GameSpeed string
	MapFile   string
	MapSize   string
}

// CurrentTurnIndex returns the slot the save reports as active, or -1 if no
// slot is flagged (typical of PBC/online saves that were never converted to
// hotseat).
func (p *ParsedSave) CurrentTurnIndex() int {
	for i, civ := range p.CivData {
		if civ.IsCurrentTurn {
			return i
		}
	}
	return -1
}

// Parser decodes raw save bytes into a ParsedSave. Implementations own the
// binary format; the turn service only consumes the structured result.
type Parser interface {
	Parse(data []byte, game *models.Game) (*ParsedSave, error)
}

// Decompress gunzips data, returning the input unchanged when it is not
// gzip-compressed. Clients may upload either form.
func Decompress(data []byte) []byte {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return data
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return data
	}
	return raw
}
