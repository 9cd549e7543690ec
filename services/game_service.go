// services/game_service.go
package services

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"pbem-turn-system/metadata"
	"pbem-turn-system/models"
	"pbem-turn-system/repository"
)

type GameService struct {
	DB    *gorm.DB
	Games repository.Games
	Turns repository.Turns
}

func NewGameService(db *gorm.DB, games repository.Games, turns repository.Turns) *GameService {
	return &GameService{DB: db, Games: games, Turns: turns}
}

type createGameRequest struct {
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	GameType    string   `json:"game_type"`
	GameSpeed   string   `json:"game_speed"`
	MapFile     string   `json:"map_file"`
	MapSize     string   `json:"map_size"`
	DLC         []string `json:"dlc"`
	Slots       int      `json:"slots"`
	Humans      int      `json:"humans"`
	Password    string   `json:"password"`
	WebhookURL  string   `json:"webhook_url"`
	CivType     string   `json:"civ_type"`

	AllowDuplicateLeaders bool   `json:"allow_duplicate_leaders"`
	RandomOnly            string `json:"random_only"`
	AllowJoinAfterStart   bool   `json:"allow_join_after_start"`

	TurnTimerMinutes          int    `json:"turn_timer_minutes"`
	TurnTimerVacationHandling string `json:"turn_timer_vacation_handling"`

	ClonedFromGameID string `json:"cloned_from_game_id"`
}

// CreateGame handles POST /games. The creator takes slot 0.
func (s *GameService) CreateGame(c *fiber.Ctx) error {
	steamID, _ := c.Locals("steam_id").(string)

	var req createGameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if req.DisplayName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "display_name is required"})
	}
	if metadata.FindGame(req.GameType) == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown game_type"})
	}
	if req.Slots < 2 || req.Humans < 1 || req.Humans > req.Slots {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid slots/humans configuration"})
	}

	civType := req.CivType
	if civType == "" {
		civType = metadata.RandomCivLeaderKey
	}

	game := &models.Game{
		ID:          uuid.NewString(),
		DisplayName: req.DisplayName,
		Slug:        slug.Make(req.DisplayName),
		Description: req.Description,
		GameType:    req.GameType,
		GameSpeed:   req.GameSpeed,
		MapFile:     req.MapFile,
		MapSize:     req.MapSize,
		DLC:         models.StringList(req.DLC),
		Slots:       req.Slots,
		Humans:      req.Humans,

		AllowDuplicateLeaders: req.AllowDuplicateLeaders,
		RandomOnly:            req.RandomOnly,
		AllowJoinAfterStart:   req.AllowJoinAfterStart,

		TurnTimerMinutes:          req.TurnTimerMinutes,
		TurnTimerVacationHandling: req.TurnTimerVacationHandling,

		CreatedBySteamID: steamID,
		WebhookURL:       req.WebhookURL,
		ClonedFromGameID: req.ClonedFromGameID,

		Players: []models.GamePlayer{
			{ID: uuid.NewString(), Slot: 0, SteamID: steamID, CivType: civType},
		},
	}
	game.Players[0].GameID = game.ID

	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to hash password"})
		}
		game.HashedPassword = string(hashed)
	}

	if err := s.Games.Save(game); err != nil {
		log.Printf("[GAME] create game failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create game"})
	}
	return c.Status(fiber.StatusCreated).JSON(game)
}

// GetGame handles GET /games/:id.
func (s *GameService) GetGame(c *fiber.Ctx) error {
	game, err := s.Games.Get(c.Params("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(game)
}

// ListOpenGames handles GET /games — joinable games only.
func (s *GameService) ListOpenGames(c *fiber.Ctx) error {
	games, err := s.Games.ListOpen()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(games)
}

type joinGameRequest struct {
	Password string `json:"password"`
	CivType  string `json:"civ_type"`
}

// JoinGame handles POST /games/:id/join.
func (s *GameService) JoinGame(c *fiber.Ctx) error {
	steamID, _ := c.Locals("steam_id").(string)

	var req joinGameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	game, err := s.Games.Get(c.Params("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if game.InProgress && !game.AllowJoinAfterStart {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "game has already started"})
	}
	if game.HashedPassword != "" {
		if bcrypt.CompareHashAndPassword([]byte(game.HashedPassword), []byte(req.Password)) != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "incorrect password"})
		}
	}

	humans := 0
	for i := range game.Players {
		if game.Players[i].SteamID == steamID {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "you are already in this game"})
		}
		if game.Players[i].SteamID != "" {
			humans++
		}
	}
	if humans >= game.Humans {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "game is full"})
	}

	civType := req.CivType
	switch game.RandomOnly {
	case models.RandomOnlyForceRandom:
		civType = metadata.RandomCivLeaderKey
	case models.RandomOnlyForceLeader:
		if civType == "" || civType == metadata.RandomCivLeaderKey {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "this game requires choosing a leader"})
		}
	default:
		if civType == "" {
			civType = metadata.RandomCivLeaderKey
		}
	}

	if !game.AllowDuplicateLeaders && civType != metadata.RandomCivLeaderKey {
		for i := range game.Players {
			if game.Players[i].CivType == civType {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "that leader is already taken"})
			}
		}
	}

	game.Players = append(game.Players, models.GamePlayer{
		ID:      uuid.NewString(),
		GameID:  game.ID,
		Slot:    len(game.Players),
		SteamID: steamID,
		CivType: civType,
	})

	if err := s.Games.Save(game); err != nil {
		log.Printf("[GAME] join game %s failed: %v", game.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to join game"})
	}
	return c.JSON(game)
}

// LeaveGame handles POST /games/:id/leave. Before the game starts the slot
// is removed; afterwards the player is marked surrendered (the slot itself
// lives on as an AI).
func (s *GameService) LeaveGame(c *fiber.Ctx) error {
	steamID, _ := c.Locals("steam_id").(string)

	game, err := s.Games.Get(c.Params("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	idx := -1
	for i := range game.Players {
		if game.Players[i].SteamID == steamID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "you are not in this game"})
	}

	if !game.InProgress {
		if game.CreatedBySteamID == steamID {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "the game creator cannot leave; delete the game instead"})
		}
		if s.DB != nil {
			if err := s.DB.Delete(&models.GamePlayer{}, "id = ?", game.Players[idx].ID).Error; err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to leave game"})
			}
		}
		game.Players = append(game.Players[:idx], game.Players[idx+1:]...)
		for i := range game.Players {
			game.Players[i].Slot = i
		}
	} else {
		if game.CurrentPlayerSteamID == steamID {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "finish your turn before surrendering"})
		}
		now := time.Now()
		game.Players[idx].HasSurrendered = true
		game.Players[idx].SurrenderDate = &now
	}

	if err := s.Games.Save(game); err != nil {
		log.Printf("[GAME] leave game %s failed: %v", game.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to leave game"})
	}
	return c.JSON(game)
}

// StartGame handles POST /games/:id/start: locks the roster, makes slot 0
// the active player and creates the first turn record. Cloned games get the
// one-shot reset flag so the first upload re-seeds round and active player
// from the save.
func (s *GameService) StartGame(c *fiber.Ctx) error {
	steamID, _ := c.Locals("steam_id").(string)

	game, err := s.Games.Get(c.Params("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if game.CreatedBySteamID != steamID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "only the game creator can start the game"})
	}
	if game.InProgress {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "game has already started"})
	}
	if len(game.Players) == 0 || game.Players[0].SteamID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "slot 0 must be a human player"})
	}

	now := time.Now()
	game.InProgress = true
	game.CurrentPlayerSteamID = game.Players[0].SteamID
	game.GameTurnRangeKey = 1
	game.ResetGameStateOnNextUpload = game.ClonedFromGameID != ""

	firstTurn := &models.GameTurn{
		GameID:        game.ID,
		Turn:          1,
		Round:         1,
		PlayerSteamID: game.CurrentPlayerSteamID,
		StartDate:     now,
	}

	err = func() error {
		if s.DB == nil {
			if err := s.Games.Save(game); err != nil {
				return err
			}
			return s.Turns.Create(firstTurn)
		}
		return s.DB.Transaction(func(tx *gorm.DB) error {
			if err := s.Games.SaveTx(tx, game); err != nil {
				return err
			}
			return s.Turns.CreateTx(tx, firstTurn)
		})
	}()
	if err != nil {
		log.Printf("[GAME] start game %s failed: %v", game.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to start game"})
	}

	log.Printf("[GAME] game %s started with %d players", game.ID, len(game.Players))
	return c.JSON(game)
}
