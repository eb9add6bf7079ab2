package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeFormerCodeFormer/shorty/internal/config"
	"github.com/CodeFormerCodeFormer/shorty/internal/database"
	"github.com/CodeFormerCodeFormer/shorty/internal/middleware"
	"github.com/CodeFormerCodeFormer/shorty/internal/models"
	"github.com/CodeFormerCodeFormer/shorty/internal/routes"
	"github.com/CodeFormerCodeFormer/shorty/pkg/logger"
)

func main() {
	// 0. Load Config & Initialize Logger
	config.LoadConfig()

	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}
	logger.Init(env)

	logger.Info().Str("environment", env).Msg("Starting Shorty backend...")

	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 1. Connect Database & Redis
	database.Connect()
	database.InitRedis()

	// 2. Migrate
	logger.Info().Msg("Running database migrations...")
	if err := database.DB.AutoMigrate(
		&models.User{},
		&models.ShortUrl{},
		&models.ShortUrlVisit{},
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}
	logger.Info().Msg("Database migrations complete")

	// 3. Setup Router
	r := gin.New()

	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	// 4. Register Routes
	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		routes.RegisterAuthRoutes(auth)

		managed := api.Group("")
		managed.Use(middleware.GeneralRateLimit())
		routes.RegisterShortUrlRoutes(managed)
	}

	// Public redirect endpoint, rate-limited separately
	routes.RegisterRedirectRoutes(r)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 5. Start server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + config.AppConfig.Port,
		Handler: r,
	}

	go func() {
		logger.Info().Str("port", config.AppConfig.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}
