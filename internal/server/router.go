package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/complainator-backend/internal/handlers"
	"github.com/yungbote/complainator-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler          *handlers.AuthHandler
	AuthMiddleware       *middleware.AuthMiddleware
	RetrospectiveHandler *handlers.RetrospectiveHandler
	SuggestionHandler    *handlers.SuggestionHandler
	AllowOrigins         []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("complainator-backend"))

	allowOrigins := cfg.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/auth/register", cfg.AuthHandler.Register)
	router.POST("/auth/login", cfg.AuthHandler.Login)

	// Protected
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	protected.POST("/auth/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/auth/logout", cfg.AuthHandler.Logout)

	protected.POST("/retrospectives", cfg.RetrospectiveHandler.Create)
	protected.GET("/retrospectives", cfg.RetrospectiveHandler.GetList)
	protected.GET("/retrospectives/:id", cfg.RetrospectiveHandler.GetByID)
	protected.POST("/retrospectives/:id/notes", cfg.RetrospectiveHandler.AddNote)
	protected.POST("/retrospectives/:id/generate-suggestions", cfg.RetrospectiveHandler.GenerateSuggestions)

	protected.PATCH("/suggestions/:id", cfg.SuggestionHandler.UpdateStatus)

	return router
}
