// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pbem-turn-system/models"
)

// steamPlayerSummary matches one entry in the Steam Web API
// GetPlayerSummaries response.
type steamPlayerSummary struct {
	SteamID      string `json:"steamid"`
	PersonaName  string `json:"personaname"`
	ProfileURL   string `json:"profileurl"`
	Avatar       string `json:"avatar"`
	AvatarMedium string `json:"avatarmedium"`
	AvatarFull   string `json:"avatarfull"`
}

type steamSummariesResponse struct {
	Response struct {
		Players []steamPlayerSummary `json:"players"`
	} `json:"response"`
}

// ProfileSyncWorker periodically refreshes user display names, avatars and
// profile links from the Steam Web API. Steam's batch endpoint takes up to
// 100 ids per call.
type ProfileSyncWorker struct {
	db         *gorm.DB
	interval   time.Duration
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewProfileSyncWorker(db *gorm.DB, steamAPIBaseURL, apiKey string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:       db,
		interval: 30 * time.Minute,
		baseURL:  steamAPIBaseURL,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	log.Println("Starting Steam profile sync worker…")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	if err := w.syncAll(ctx); err != nil {
		log.Printf("[PROFILE_SYNC] initial sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncAll(ctx); err != nil {
				log.Printf("[PROFILE_SYNC] sync failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("Steam profile sync worker stopped")
			return
		}
	}
}

func (w *ProfileSyncWorker) syncAll(ctx context.Context) error {
	var steamIDs []string
	if err := w.db.Model(&models.User{}).Pluck("steam_id", &steamIDs).Error; err != nil {
		return fmt.Errorf("list user ids: %w", err)
	}
	if len(steamIDs) == 0 {
		return nil
	}

	for start := 0; start < len(steamIDs); start += 100 {
		end := start + 100
		if end > len(steamIDs) {
			end = len(steamIDs)
		}
		if err := w.syncBatch(ctx, steamIDs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w *ProfileSyncWorker) syncBatch(ctx context.Context, steamIDs []string) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid steam API base URL %q: %w", w.baseURL, err)
	}

	endpoint := base.JoinPath("/ISteamUser/GetPlayerSummaries/v0002/")
	q := endpoint.Query()
	q.Set("key", w.apiKey)
	q.Set("steamids", strings.Join(steamIDs, ","))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build steam request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("steam API request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("steam API returned %d: %s", resp.StatusCode, string(body))
	}

	var summaries steamSummariesResponse
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		return fmt.Errorf("decode steam response: %w", err)
	}

	var updated int
	for _, p := range summaries.Response.Players {
		err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "steam_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"display_name", "avatar_small", "avatar_medium", "avatar_full",
				"steam_profile_url", "updated_at",
			}),
		}).Create(&models.User{
			SteamID:         p.SteamID,
			DisplayName:     p.PersonaName,
			AvatarSmall:     p.Avatar,
			AvatarMedium:    p.AvatarMedium,
			AvatarFull:      p.AvatarFull,
			SteamProfileURL: p.ProfileURL,
		}).Error
		if err != nil {
			log.Printf("[PROFILE_SYNC] upsert %s failed: %v", p.SteamID, err)
			continue
		}
		updated++
	}

	log.Printf("[PROFILE_SYNC] refreshed %d of %d profiles", updated, len(steamIDs))
	return nil
}
