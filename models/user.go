package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the public player profile, keyed by steam id. Turn statistics are
// bumped by the turn service on each accepted submission and by the turn
// timer when it skips someone.
type User struct {
	SteamID     string `json:"steam_id" gorm:"primaryKey"`
	DisplayName string `json:"display_name" gorm:"not null"`

	AvatarSmall     string `json:"avatar_small"`
	AvatarMedium    string `json:"avatar_medium"`
	AvatarFull      string `json:"avatar_full"`
	SteamProfileURL string `json:"steam_profile_url"`

	VacationMode bool   `json:"vacation_mode"`
	Timezone     string `json:"timezone,omitempty"`
	WebhookURL   string `json:"webhook_url,omitempty"`
	Banned       bool   `json:"banned" gorm:"default:false"`

	// Turn statistics
	TurnsPlayed  int64 `json:"turns_played" gorm:"default:0"`
	TurnsSkipped int64 `json:"turns_skipped" gorm:"default:0"`
	TimeTaken    int64 `json:"time_taken" gorm:"default:0"` // milliseconds across all turns
	FastTurns    int64 `json:"fast_turns" gorm:"default:0"` // under an hour
	SlowTurns    int64 `json:"slow_turns" gorm:"default:0"` // over six hours

	LastTurnEndDate *time.Time `json:"last_turn_end_date,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// PrivateUserData holds fields never returned on public profiles.
type PrivateUserData struct {
	SteamID           string `json:"steam_id" gorm:"primaryKey"`
	EmailAddress      string `json:"email_address,omitempty"`
	LastTurnIPAddress string `json:"last_turn_ip_address,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
