// repository/repository.go
//
// Narrow persistence interfaces consumed by the services, plus their GORM
// implementations. Services depend on the interfaces so the turn pipeline
// can be exercised with fakes.
package repository

import (
	"errors"

	"gorm.io/gorm"

	"pbem-turn-system/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

type Games interface {
	Get(gameID string) (*models.Game, error)
	ListOpen() ([]models.Game, error)
	ListInProgress() ([]models.Game, error)
	Save(game *models.Game) error
	SaveTx(tx *gorm.DB, game *models.Game) error
}

type Turns interface {
	Get(gameID string, turn int) (*models.GameTurn, error)
	Create(turn *models.GameTurn) error
	CreateTx(tx *gorm.DB, turn *models.GameTurn) error
}

type Users interface {
	Get(steamID string) (*models.User, error)
	// ForGame returns the users for a game's human slots, ordered to match
	// roster position. Empty slots are skipped.
	ForGame(game *models.Game) ([]*models.User, error)
	Save(user *models.User) error
	SaveTx(tx *gorm.DB, user *models.User) error
}

type PrivateUserData interface {
	Get(steamID string) (*models.PrivateUserData, error)
	Save(pud *models.PrivateUserData) error
}
