// services/turn_service.go
//
// TurnService orchestrates one turn-submission cycle: fetch records and the
// uploaded blob, parse, run the pure validation/progression pipeline, then
// commit every mutation atomically and emit side effects. Nothing is
// persisted when any step rejects.
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pbem-turn-system/engine"
	"pbem-turn-system/metadata"
	"pbem-turn-system/models"
	"pbem-turn-system/repository"
	"pbem-turn-system/save"
	"pbem-turn-system/storage"
)

// ErrParseFailed wraps structural save-parse failures so the transport layer
// can surface them as a client error rather than an internal one.
var ErrParseFailed = errors.New("failed to parse save file")

// BlobStore is the slice of storage.SaveStore the turn service needs.
type BlobStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) bool
	PresignedGetURL(ctx context.Context, key, downloadName string, expires time.Duration) (string, error)
	PresignedPutURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

type TurnService struct {
	DB     *gorm.DB
	Games  repository.Games
	Turns  repository.Turns
	Users  repository.Users
	Pud    repository.PrivateUserData
	Store  BlobStore
	Parser save.Parser

	Notifier Notifier
	Defeats  DefeatHandler

	// IsCompleted may be nil; the engine default then applies.
	IsCompleted engine.CompletionPredicate

	// now is swappable for tests.
	now func() time.Time
}

func NewTurnService(
	db *gorm.DB,
	games repository.Games,
	turns repository.Turns,
	users repository.Users,
	pud repository.PrivateUserData,
	store BlobStore,
	parser save.Parser,
	notifier Notifier,
	defeats DefeatHandler,
) *TurnService {
	return &TurnService{
		DB:       db,
		Games:    games,
		Turns:    turns,
		Users:    users,
		Pud:      pud,
		Store:    store,
		Parser:   parser,
		Notifier: notifier,
		Defeats:  defeats,
		now:      time.Now,
	}
}

// FinishSubmit handles POST /games/:id/turn/finishSubmit.
func (s *TurnService) FinishSubmit(c *fiber.Ctx) error {
	gameID := c.Params("id")
	steamID, _ := c.Locals("steam_id").(string)

	game, err := s.finishSubmit(c.Context(), gameID, steamID, c.IP())
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(game)
}

func (s *TurnService) finishSubmit(ctx context.Context, gameID, steamID, sourceIP string) (*models.Game, error) {
	game, err := s.Games.Get(gameID)
	if err != nil {
		return nil, err
	}

	if game.CurrentPlayerSteamID != steamID {
		return nil, &engine.RejectionError{Kind: engine.RejectNotYourTurn, Message: "It's not your turn!"}
	}

	priorTurn, err := s.Turns.Get(game.ID, game.GameTurnRangeKey)
	if err != nil {
		return nil, fmt.Errorf("prior turn %d missing for game %s: %v", game.GameTurnRangeKey, game.ID, err)
	}
	nextTurn := game.GameTurnRangeKey + 1

	// The client uploaded to the next turn's key via startSubmit; a missing
	// blob here is an invariant violation, not user error.
	blob, err := s.Store.Fetch(ctx, storage.SaveKey(game.ID, nextTurn))
	if err != nil {
		return nil, fmt.Errorf("uploaded save missing for game %s turn %d: %v", game.ID, nextTurn, err)
	}

	parsed, err := s.Parser.Parse(save.Decompress(blob), game)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	now := s.now()

	vres, err := engine.ValidateSubmission(game, parsed, steamID, nextTurn, now)
	if err != nil {
		return nil, err
	}

	pres, err := engine.AdvanceTurn(vres.Game, priorTurn, parsed, s.IsCompleted)
	if err != nil {
		return nil, err
	}

	g := pres.Game
	g.GameTurnRangeKey = nextTurn
	g.LastTurnEndDate = &now

	users, err := s.Users.ForGame(g)
	if err != nil {
		return nil, err
	}

	var submitter *models.User
	var nextUser *models.User
	for _, u := range users {
		if u == nil {
			continue
		}
		if u.SteamID == steamID {
			submitter = u
		}
		if u.SteamID == g.CurrentPlayerSteamID {
			nextUser = u
		}
	}

	if submitter != nil {
		recordTurnStats(submitter, priorTurn.StartDate, now)
	}

	newTurn := &models.GameTurn{
		GameID:        g.ID,
		Turn:          nextTurn,
		Round:         g.Round,
		PlayerSteamID: g.CurrentPlayerSteamID,
		StartDate:     now,
	}

	err = s.transact(func(tx *gorm.DB) error {
		if err := s.Games.SaveTx(tx, g); err != nil {
			return err
		}
		if err := s.Turns.CreateTx(tx, newTurn); err != nil {
			return err
		}
		if submitter != nil {
			if err := s.Users.SaveTx(tx, submitter); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(vres.NewlyDefeated) > 0 {
		s.Defeats.PlayersDefeated(g, users, vres.NewlyDefeated)
	}

	if pres.FirstFinalized {
		s.Notifier.Finalized(g)
	} else {
		s.Notifier.TurnReady(g, nextUser)
	}

	// Best effort, after the committed submission.
	if pud, err := s.Pud.Get(steamID); err == nil {
		pud.LastTurnIPAddress = sourceIP
		if err := s.Pud.Save(pud); err != nil {
			log.Printf("[TURN] save private user data for %s: %v", steamID, err)
		}
	}

	log.Printf("[TURN] game %s turn %d accepted: round %d, next player %s",
		g.ID, nextTurn, g.Round, g.CurrentPlayerSteamID)

	return g, nil
}

// GetTurn handles GET /games/:id/turn — a time-limited download link for the
// active player's pending save. ?compressed=1 prefers the gzipped object
// when one exists.
func (s *TurnService) GetTurn(c *fiber.Ctx) error {
	gameID := c.Params("id")
	steamID, _ := c.Locals("steam_id").(string)

	game, err := s.Games.Get(gameID)
	if err != nil {
		return s.errorResponse(c, err)
	}
	if game.CurrentPlayerSteamID != steamID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "It's not your turn!"})
	}

	key := storage.SaveKey(game.ID, game.GameTurnRangeKey)
	if c.Query("compressed") != "" {
		if gz := key + ".gz"; s.Store.Exists(c.Context(), gz) {
			key = gz
		}
	}

	ext := "CivXSave"
	if civGame := metadata.FindGame(game.GameType); civGame != nil {
		ext = civGame.SaveExtension
	}

	url, err := s.Store.PresignedGetURL(c.Context(), key, "Play This One!."+ext, time.Minute)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"download_url": url})
}

// StartSubmit handles POST /games/:id/turn/startSubmit — a time-limited
// upload link for the next turn's save blob.
func (s *TurnService) StartSubmit(c *fiber.Ctx) error {
	gameID := c.Params("id")
	steamID, _ := c.Locals("steam_id").(string)

	game, err := s.Games.Get(gameID)
	if err != nil {
		return s.errorResponse(c, err)
	}
	if game.CurrentPlayerSteamID != steamID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "It's not your turn!"})
	}

	url, err := s.Store.PresignedPutURL(c.Context(), storage.SaveKey(game.ID, game.GameTurnRangeKey+1), 5*time.Minute)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"upload_url": url})
}

func (s *TurnService) transact(fn func(tx *gorm.DB) error) error {
	if s.DB == nil {
		return fn(nil)
	}
	return s.DB.Transaction(fn)
}

func (s *TurnService) errorResponse(c *fiber.Ctx, err error) error {
	if r := engine.AsRejection(err); r != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": r.Message,
			"kind":  string(r.Kind),
		})
	}
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
	}
	if errors.Is(err, ErrParseFailed) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	log.Printf("[TURN] internal error on %s: %v", c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "there was an error processing your request",
	})
}

func recordTurnStats(user *models.User, turnStart, now time.Time) {
	elapsed := now.Sub(turnStart)
	user.TurnsPlayed++
	user.TimeTaken += elapsed.Milliseconds()
	if elapsed < time.Hour {
		user.FastTurns++
	} else if elapsed > 6*time.Hour {
		user.SlowTurns++
	}
	user.LastTurnEndDate = &now
}
