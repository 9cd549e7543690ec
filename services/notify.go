// services/notify.go
package services

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"

	"pbem-turn-system/models"
	"pbem-turn-system/utils"
)

// Notifier delivers outbound game events. Failures are logged, never
// propagated: a webhook outage must not fail a turn submission.
type Notifier interface {
	// TurnReady tells the next player their save is waiting.
	TurnReady(game *models.Game, user *models.User)
	// Finalized announces a completed game. The turn service guarantees it
	// is called at most once per game.
	Finalized(game *models.Game)
}

// DefeatHandler applies the external consequences of players defeated by
// the current submission (AI takeover bookkeeping, notifications).
type DefeatHandler interface {
	PlayersDefeated(game *models.Game, users []*models.User, defeated []models.GamePlayer)
}

type webhookEvent struct {
	Event                string `json:"event"`
	GameID               string `json:"game_id"`
	DisplayName          string `json:"display_name"`
	Round                int    `json:"round"`
	CurrentPlayerSteamID string `json:"current_player_steam_id,omitempty"`
	PlayerSteamID        string `json:"player_steam_id,omitempty"`
}

// WebhookNotifier posts JSON events to the game's webhook and, for personal
// events, the affected user's webhook.
type WebhookNotifier struct {
	Client *http.Client
}

func NewWebhookNotifier() *WebhookNotifier {
	return &WebhookNotifier{Client: utils.HTTPClient}
}

func (n *WebhookNotifier) TurnReady(game *models.Game, user *models.User) {
	evt := webhookEvent{
		Event:                "turn_ready",
		GameID:               game.ID,
		DisplayName:          game.DisplayName,
		Round:                game.Round,
		CurrentPlayerSteamID: game.CurrentPlayerSteamID,
	}
	n.post(game.WebhookURL, evt)
	if user != nil {
		n.post(user.WebhookURL, evt)
	}
}

func (n *WebhookNotifier) Finalized(game *models.Game) {
	n.post(game.WebhookURL, webhookEvent{
		Event:       "game_finalized",
		GameID:      game.ID,
		DisplayName: game.DisplayName,
		Round:       game.Round,
	})
}

func (n *WebhookNotifier) PlayersDefeated(game *models.Game, users []*models.User, defeated []models.GamePlayer) {
	for _, p := range defeated {
		log.Printf("[DEFEAT] game %s: player %s (%s) defeated", game.ID, p.SteamID, p.CivType)
		evt := webhookEvent{
			Event:         "player_defeated",
			GameID:        game.ID,
			DisplayName:   game.DisplayName,
			Round:         game.Round,
			PlayerSteamID: p.SteamID,
		}
		n.post(game.WebhookURL, evt)
		for _, u := range users {
			if u != nil && u.SteamID == p.SteamID {
				n.post(u.WebhookURL, evt)
			}
		}
	}
}

func (n *WebhookNotifier) post(url string, evt webhookEvent) {
	if url == "" {
		return
	}
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("[NOTIFY] marshal %s event: %v", evt.Event, err)
		return
	}
	resp, err := n.Client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[NOTIFY] post %s to %s failed: %v", evt.Event, url, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("[NOTIFY] post %s to %s: status %d", evt.Event, url, resp.StatusCode)
	}
}
