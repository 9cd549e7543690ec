package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pbem-turn-system/handlers"
	"pbem-turn-system/middleware"
	"pbem-turn-system/models"
	"pbem-turn-system/repository"
	"pbem-turn-system/save"
	"pbem-turn-system/services"
	"pbem-turn-system/storage"
	"pbem-turn-system/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024 * 1024, // save manifests are small, but leave headroom
	})

	// Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("ALLOWED_ORIGINS not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Steam-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Game{},
		&models.GamePlayer{},
		&models.GameTurn{},
		&models.User{},
		&models.PrivateUserData{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	store, err := storage.InitR2()
	if err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	games := repository.NewGames(db)
	turns := repository.NewTurns(db)
	users := repository.NewUsers(db)
	pud := repository.NewPrivateUserData(db)

	notifier := services.NewWebhookNotifier()

	gameService := services.NewGameService(db, games, turns)
	turnService := services.NewTurnService(
		db, games, turns, users, pud,
		store, &save.JSONParser{}, notifier, notifier,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	steamAPIKey := os.Getenv("STEAM_API_KEY")
	if steamAPIKey != "" {
		steamAPIBase := os.Getenv("STEAM_API_BASE_URL")
		if steamAPIBase == "" {
			steamAPIBase = "https://api.steampowered.com"
		}
		profileSync := workers.NewProfileSyncWorker(db, steamAPIBase, steamAPIKey)
		profileSync.Start(ctx)
	} else {
		log.Println("STEAM_API_KEY not set, profile sync disabled")
	}

	turnService.StartTurnTimerScheduler()

	handlers.SetupGameRoutes(app, gameService)
	handlers.SetupTurnRoutes(app, turnService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("Server running on http://localhost:5300")
	log.Println("Turn timer scheduler running (every 1m)")
	log.Println("GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
