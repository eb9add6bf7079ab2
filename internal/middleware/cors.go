package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/CodeFormerCodeFormer/shorty/internal/config"
)

func CORSMiddleware() gin.HandlerFunc {
	// Allow the admin SPA origin plus the local dev server
	config := cors.Config{
		AllowOrigins:     []string{config.AppConfig.FrontendURL, "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	return cors.New(config)
}
