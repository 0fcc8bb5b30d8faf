package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/complainator-backend/internal/db"
	"github.com/yungbote/complainator-backend/internal/handlers"
	"github.com/yungbote/complainator-backend/internal/logger"
	"github.com/yungbote/complainator-backend/internal/middleware"
	"github.com/yungbote/complainator-backend/internal/observability"
	"github.com/yungbote/complainator-backend/internal/repos"
	"github.com/yungbote/complainator-backend/internal/server"
	"github.com/yungbote/complainator-backend/internal/services"
	"github.com/yungbote/complainator-backend/internal/utils"
)

func main() {
	// .env is optional, real deployments inject env directly
	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "complainator-backend",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})
	if shutdownOTel != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOTel(ctx); err != nil {
				log.Warn("OTel shutdown failed", "error", err)
			}
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	retrospectiveRepo := repos.NewRetrospectiveRepo(thePG, log)
	noteRepo := repos.NewNoteRepo(thePG, log)
	suggestionRepo := repos.NewSuggestionRepo(thePG, log)

	// Services
	log.Info("Setting up services from main...")
	openRouterClient, err := services.NewOpenRouterClient(log)
	if err != nil {
		log.Error("Could not init OpenRouterClient", "error", err)
		os.Exit(1)
	}
	aiSuggestionService := services.NewAISuggestionService(log, openRouterClient)
	authService := services.NewAuthService(
		thePG,
		log,
		userRepo,
		userTokenRepo,
		jwtSecretKey,
		time.Duration(accessTokenTTL)*time.Second,
		time.Duration(refreshTokenTTL)*time.Second,
	)
	retrospectiveService := services.NewRetrospectiveService(thePG, log, retrospectiveRepo, noteRepo)
	suggestionService := services.NewSuggestionService(thePG, log, retrospectiveRepo, suggestionRepo, aiSuggestionService)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	retrospectiveHandler := handlers.NewRetrospectiveHandler(retrospectiveService, suggestionService)
	suggestionHandler := handlers.NewSuggestionHandler(suggestionService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	var allowOrigins []string
	if origins := utils.GetEnv("CORS_ALLOW_ORIGINS", "", log); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				allowOrigins = append(allowOrigins, o)
			}
		}
	}
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:          authHandler,
		AuthMiddleware:       authMiddleware,
		RetrospectiveHandler: retrospectiveHandler,
		SuggestionHandler:    suggestionHandler,
		AllowOrigins:         allowOrigins,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
