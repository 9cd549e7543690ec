// repository/gorm.go
package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"pbem-turn-system/models"
)

type GormGames struct {
	DB *gorm.DB
}

func NewGames(db *gorm.DB) *GormGames {
	return &GormGames{DB: db}
}

func (r *GormGames) Get(gameID string) (*models.Game, error) {
	var game models.Game
	err := r.DB.Preload("Players", func(db *gorm.DB) *gorm.DB {
		return db.Order("slot ASC")
	}).First(&game, "id = ?", gameID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game %s: %w", gameID, err)
	}
	return &game, nil
}

func (r *GormGames) ListOpen() ([]models.Game, error) {
	var games []models.Game
	err := r.DB.Preload("Players").
		Where("in_progress = ? AND completed = ?", false, false).
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("list open games: %w", err)
	}
	return games, nil
}

func (r *GormGames) ListInProgress() ([]models.Game, error) {
	var games []models.Game
	err := r.DB.Preload("Players").
		Where("in_progress = ? AND completed = ?", true, false).
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("list in-progress games: %w", err)
	}
	return games, nil
}

func (r *GormGames) Save(game *models.Game) error {
	return r.SaveTx(r.DB, game)
}

func (r *GormGames) SaveTx(tx *gorm.DB, game *models.Game) error {
	if err := tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(game).Error; err != nil {
		return fmt.Errorf("save game %s: %w", game.ID, err)
	}
	return nil
}

type GormTurns struct {
	DB *gorm.DB
}

func NewTurns(db *gorm.DB) *GormTurns {
	return &GormTurns{DB: db}
}

func (r *GormTurns) Get(gameID string, turn int) (*models.GameTurn, error) {
	var gt models.GameTurn
	err := r.DB.First(&gt, "game_id = ? AND turn = ?", gameID, turn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get turn %s/%d: %w", gameID, turn, err)
	}
	return &gt, nil
}

func (r *GormTurns) Create(turn *models.GameTurn) error {
	return r.CreateTx(r.DB, turn)
}

func (r *GormTurns) CreateTx(tx *gorm.DB, turn *models.GameTurn) error {
	if err := tx.Create(turn).Error; err != nil {
		return fmt.Errorf("create turn %s/%d: %w", turn.GameID, turn.Turn, err)
	}
	return nil
}

type GormUsers struct {
	DB *gorm.DB
}

func NewUsers(db *gorm.DB) *GormUsers {
	return &GormUsers{DB: db}
}

func (r *GormUsers) Get(steamID string) (*models.User, error) {
	var user models.User
	err := r.DB.First(&user, "steam_id = ?", steamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", steamID, err)
	}
	return &user, nil
}

func (r *GormUsers) ForGame(game *models.Game) ([]*models.User, error) {
	var steamIDs []string
	for i := range game.Players {
		if game.Players[i].SteamID != "" {
			steamIDs = append(steamIDs, game.Players[i].SteamID)
		}
	}
	if len(steamIDs) == 0 {
		return nil, nil
	}

	var users []models.User
	if err := r.DB.Where("steam_id IN ?", steamIDs).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("get users for game %s: %w", game.ID, err)
	}

	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].SteamID] = &users[i]
	}

	// Keep roster order so index-based lookups line up with slots.
	ordered := make([]*models.User, 0, len(steamIDs))
	for _, id := range steamIDs {
		ordered = append(ordered, byID[id])
	}
	return ordered, nil
}

func (r *GormUsers) Save(user *models.User) error {
	return r.SaveTx(r.DB, user)
}

func (r *GormUsers) SaveTx(tx *gorm.DB, user *models.User) error {
	if err := tx.Save(user).Error; err != nil {
		return fmt.Errorf("save user %s: %w", user.SteamID, err)
	}
	return nil
}

type GormPrivateUserData struct {
	DB *gorm.DB
}

func NewPrivateUserData(db *gorm.DB) *GormPrivateUserData {
	return &GormPrivateUserData{DB: db}
}

func (r *GormPrivateUserData) Get(steamID string) (*models.PrivateUserData, error) {
	var pud models.PrivateUserData
	err := r.DB.First(&pud, "steam_id = ?", steamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Lazily created on first use.
		return &models.PrivateUserData{SteamID: steamID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get private user data %s: %w", steamID, err)
	}
	return &pud, nil
}

func (r *GormPrivateUserData) Save(pud *models.PrivateUserData) error {
	if err := r.DB.Save(pud).Error; err != nil {
		return fmt.Errorf("save private user data %s: %w", pud.SteamID, err)
	}
	return nil
}
