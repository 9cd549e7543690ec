// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"

	"pbem-turn-system/engine"
	"pbem-turn-system/models"
	"pbem-turn-system/storage"
)

// StartTurnTimerScheduler runs the turn-timer sweep once a minute: players
// who sat on their turn past the game's timer get skipped according to the
// game's vacation policy.
func (s *TurnService) StartTurnTimerScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			games, err := s.Games.ListInProgress()
			if err != nil {
				log.Printf("[SCHEDULER] list games: %v", err)
				return
			}

			now := s.now()
			for i := range games {
				game := &games[i]
				if game.TurnTimerMinutes <= 0 {
					continue
				}
				if err := s.maybeSkipTurn(context.Background(), game, now); err != nil {
					log.Printf("[SCHEDULER] skip check for game %s: %v", game.ID, err)
				}
			}
		}),
	)
}

func (s *TurnService) maybeSkipTurn(ctx context.Context, game *models.Game, now time.Time) error {
	turn, err := s.Turns.Get(game.ID, game.GameTurnRangeKey)
	if err != nil {
		return err
	}

	var current *models.User
	if u, err := s.Users.Get(game.CurrentPlayerSteamID); err == nil {
		current = u
	}
	onVacation := current != nil && current.VacationMode

	timerExpired := now.Sub(turn.StartDate) > time.Duration(game.TurnTimerMinutes)*time.Minute

	skip := false
	switch game.TurnTimerVacationHandling {
	case models.VacationPause:
		skip = timerExpired && !onVacation
	case models.VacationSkipImmediately:
		skip = timerExpired || onVacation
	default: // SKIP_AFTER_TIMER and unset
		skip = timerExpired
	}
	if !skip {
		return nil
	}

	return s.skipTurn(ctx, game, current, now)
}

// skipTurn hands the current save to the next player unchanged. The skipped
// player's units idle; the save state is corrected when it is rewritten for
// the new active player.
func (s *TurnService) skipTurn(ctx context.Context, game *models.Game, skipped *models.User, now time.Time) error {
	next := engine.NextPlayerIndex(game)
	if next < 0 {
		return nil
	}

	data, err := s.Store.Fetch(ctx, storage.SaveKey(game.ID, game.GameTurnRangeKey))
	if err != nil {
		return err
	}

	nextTurn := game.GameTurnRangeKey + 1
	if err := s.Store.Put(ctx, storage.SaveKey(game.ID, nextTurn), data); err != nil {
		return err
	}

	skippedID := game.CurrentPlayerSteamID
	game.CurrentPlayerSteamID = game.Players[next].SteamID
	game.GameTurnRangeKey = nextTurn
	game.LastTurnEndDate = &now

	newTurn := &models.GameTurn{
		GameID:        game.ID,
		Turn:          nextTurn,
		Round:         game.Round,
		PlayerSteamID: game.CurrentPlayerSteamID,
		StartDate:     now,
	}

	if skipped != nil {
		skipped.TurnsSkipped++
	}

	err = s.transact(func(tx *gorm.DB) error {
		if err := s.Games.SaveTx(tx, game); err != nil {
			return err
		}
		if err := s.Turns.CreateTx(tx, newTurn); err != nil {
			return err
		}
		if skipped != nil {
			return s.Users.SaveTx(tx, skipped)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[SCHEDULER] game %s: skipped %s, now on %s (turn %d)",
		game.ID, skippedID, game.CurrentPlayerSteamID, nextTurn)

	var nextUser *models.User
	if u, err := s.Users.Get(game.CurrentPlayerSteamID); err == nil {
		nextUser = u
	}
	s.Notifier.TurnReady(game, nextUser)

	return nil
}
