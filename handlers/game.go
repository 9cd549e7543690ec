// handlers/game.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"pbem-turn-system/middleware"
	"pbem-turn-system/services"
)

func SetupGameRoutes(app *fiber.App, gameService *services.GameService) {
	// Public listing and lookup — gateway auth only, no user context needed.
	app.Get("/games", gameService.ListOpenGames)
	app.Get("/games/:id", gameService.GetGame)

	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/games", gameService.CreateGame)
	secured.Post("/games/:id/join", gameService.JoinGame)
	secured.Post("/games/:id/leave", gameService.LeaveGame)
	secured.Post("/games/:id/start", gameService.StartGame)
}

func SetupTurnRoutes(app *fiber.App, turnService *services.TurnService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Get("/games/:id/turn", turnService.GetTurn)
	secured.Post("/games/:id/turn/startSubmit", turnService.StartSubmit)
	secured.Post("/games/:id/turn/finishSubmit", turnService.FinishSubmit)
}
