package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	"github.com/piggy-devil/prompt-v1.0/internal/config"
	"github.com/piggy-devil/prompt-v1.0/internal/db"
	"github.com/piggy-devil/prompt-v1.0/internal/googleauth"
	"github.com/piggy-devil/prompt-v1.0/internal/handlers"
	"github.com/piggy-devil/prompt-v1.0/internal/llm"
	"github.com/piggy-devil/prompt-v1.0/internal/middleware"
	"github.com/piggy-devil/prompt-v1.0/internal/observability"
	"github.com/piggy-devil/prompt-v1.0/internal/services"
	"github.com/piggy-devil/prompt-v1.0/internal/store"
	"go.uber.org/zap"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it, using environment variables")
	}

	cfg := config.Load()

	logger, err := observability.InitLogger(os.Getenv("APP_ENV") != "production")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	database, err := db.ConnectMongoDB(cfg.MongoURI, cfg.DBName)
	if err != nil {
		logger.Fatal("MongoDB connection failed", zap.Error(err))
	}

	userStore := store.NewUserStore(database)
	accountStore := store.NewAccountStore(database)
	imageStore := store.NewImageStore(database)
	chatStore := store.NewChatStore(database)

	refresher := googleauth.NewRefresher(accountStore, googleauth.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})

	authService := services.NewAuthService(userStore, cfg.JWTSecret)
	imageService := services.NewImageService(
		imageStore,
		services.GoogleDriveFactory(refresher, cfg.DriveRootName),
		logger,
	)
	chatService := services.NewChatService(chatStore, llm.NewClient(cfg.OllamaHost), logger)

	authHandler := handlers.NewAuthHandler(authService, refresher, cfg.JWTSecret, logger)
	imageHandler := handlers.NewImageHandler(imageService, logger)
	chatHandler := handlers.NewChatHandler(chatService, logger)

	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024,
	})
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	authRequired := middleware.NewAuthMiddleware(cfg.JWTSecret)

	// Auth routes
	auth := app.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/google/connect", authRequired, authHandler.GoogleConnect)
	auth.Get("/google/callback", authHandler.GoogleCallback)

	// Upload routes
	upload := app.Group("/upload", authRequired)
	upload.Post("/", imageHandler.Upload)
	upload.Post("/bulk", imageHandler.BulkUpload)

	// Image routes
	images := app.Group("/images", authRequired)
	images.Get("/", imageHandler.List)
	images.Patch("/:id", imageHandler.Update)
	images.Delete("/:id", imageHandler.Delete)
	images.Post("/batch-delete", imageHandler.BatchDelete)

	app.Get("/public/images", imageHandler.PublicList)

	// Chat routes
	chat := app.Group("/chat", authRequired)
	chat.Post("/new", chatHandler.NewSession)
	chat.Get("/list", chatHandler.ListSessions)
	chat.Get("/:chatId", chatHandler.GetSession)
	chat.Delete("/:chatId", chatHandler.DeleteSession)
	chat.Get("/:chatId/messages", chatHandler.ListMessages)
	chat.Post("/:chatId/messages", chatHandler.PostMessage)
	chat.Post("/:chatId/stream", chatHandler.Stream)

	logger.Info("starting server", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
