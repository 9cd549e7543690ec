// models/game.go
package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RandomOnlyEither      = "EITHER"
	RandomOnlyForceRandom = "FORCE_RANDOM"
	RandomOnlyForceLeader = "FORCE_LEADER"
)

const (
	VacationPause           = "PAUSE"
	VacationSkipAfterTimer  = "SKIP_AFTER_TIMER"
	VacationSkipImmediately = "SKIP_IMMEDIATELY"
)

// Game is one asynchronous play-by-turn session. The ordered Players slice
// doubles as the turn order: slot index == roster position.
type Game struct {
	ID          string `json:"id" gorm:"primaryKey"`
	DisplayName string `json:"display_name" gorm:"not null"`
	Slug        string `json:"slug" gorm:"index"`
	Description string `json:"description"`

	// ⚙️ Configuration — fixed once the game starts
	GameType              string     `json:"game_type" gorm:"not null"`
	GameSpeed             string     `json:"game_speed"`
	MapFile               string     `json:"map_file"`
	MapSize               string     `json:"map_size"`
	DLC                   StringList `json:"dlc" gorm:"type:text"`
	Slots                 int        `json:"slots"`
	Humans                int        `json:"humans"`
	AllowDuplicateLeaders bool       `json:"allow_duplicate_leaders"`
	RandomOnly            string     `json:"random_only"`
	AllowJoinAfterStart   bool       `json:"allow_join_after_start"`

	// ⏱️ Turn timer policy
	TurnTimerMinutes          int    `json:"turn_timer_minutes"`
	TurnTimerVacationHandling string `json:"turn_timer_vacation_handling"`

	CreatedBySteamID string `json:"created_by_steam_id" gorm:"index"`
	HashedPassword   string `json:"-"`
	WebhookURL       string `json:"webhook_url,omitempty"`
	ClonedFromGameID string `json:"cloned_from_game_id,omitempty"`

	// 🎛️ Progress state — written only by a successful turn submission
	InProgress                 bool       `json:"in_progress"`
	CurrentPlayerSteamID       string     `json:"current_player_steam_id" gorm:"index"`
	Round                      int        `json:"round" gorm:"default:0"`
	GameTurnRangeKey           int        `json:"game_turn_range_key" gorm:"default:0"`
	Completed                  bool       `json:"completed"`
	Finalized                  bool       `json:"finalized"`
	ResetGameStateOnNextUpload bool       `json:"reset_game_state_on_next_upload"`
	LastTurnEndDate            *time.Time `json:"last_turn_end_date,omitempty"`

	// 🔗 Roster, ordered by slot
	Players []GamePlayer `json:"players" gorm:"foreignKey:GameID"`

	Timestamps
}

// GamePlayer is one slot in the roster. SteamID is empty for AI/unfilled
// slots. Once HasSurrendered is set the slot never returns to human control.
type GamePlayer struct {
	ID      string `json:"id" gorm:"primaryKey"`
	GameID  string `json:"game_id" gorm:"index;not null"`
	Slot    int    `json:"slot"`
	SteamID string `json:"steam_id"`
	CivType string `json:"civ_type"`

	HasSurrendered bool       `json:"has_surrendered"`
	SurrenderDate  *time.Time `json:"surrender_date,omitempty"`
}

// IsHuman reports whether the slot is an active human-controlled player.
func (p *GamePlayer) IsHuman() bool {
	return p.SteamID != "" && !p.HasSurrendered
}

// GameTurn is the immutable record of one turn boundary, keyed by
// (game id, turn sequence number). Never updated after creation.
type GameTurn struct {
	GameID        string    `json:"game_id" gorm:"primaryKey"`
	Turn          int       `json:"turn" gorm:"primaryKey;autoIncrement:false"`
	Round         int       `json:"round"`
	PlayerSteamID string    `json:"player_steam_id"`
	StartDate     time.Time `json:"start_date"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
